package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/coffee-ui/internal/domain/auth"
	"github.com/target/coffee-ui/internal/domain/resource"
	apperrors "github.com/target/coffee-ui/internal/errors"
	mockauth "github.com/target/coffee-ui/internal/mocks/auth"
	"github.com/target/coffee-ui/internal/ports"
	"github.com/target/coffee-ui/internal/testutil"
)

type stubCaller struct {
	client  ports.APIClient
	profile *domainauth.Profile
}

func (c stubCaller) Client() ports.APIClient { return c.client }

func (c stubCaller) Profile() (domainauth.Profile, bool) {
	if c.profile == nil {
		return domainauth.Profile{}, false
	}
	return *c.profile, true
}

func callerAs(p domainauth.Profile, client ports.APIClient) stubCaller {
	return stubCaller{client: client, profile: &p}
}

func TestResourceService_Authorize(t *testing.T) {
	svc := NewResourceService(ResourceServiceOptions{})
	barista := testutil.NewProfile().Build()
	manager := testutil.NewProfile().Manager().Build()

	tests := []struct {
		name     string
		caller   Caller
		resource string
		write    bool
		check    func(error) bool
		wantMsg  string
	}{
		{"unknown resource", callerAs(barista, &mockauth.FakeClient{}), "orders", false, apperrors.IsNotFound, ""},
		{"anonymous", stubCaller{client: &mockauth.FakeClient{}}, "menu_items", false, apperrors.IsAuthentication, ""},
		{"barista reads employees", callerAs(barista, &mockauth.FakeClient{}), "employees", false, apperrors.IsForbidden, "You do not have access to Employees."},
		{"barista writes menu", callerAs(barista, &mockauth.FakeClient{}), "menu_items", true, apperrors.IsForbidden, "You cannot change Menu."},
		{"manager writes schedules", callerAs(manager, &mockauth.FakeClient{}), "work_schedules", true, apperrors.IsForbidden, "Work schedules is read-only."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.authorize(tt.caller, tt.resource, tt.write)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, apperrors.Message(err, ""))
			}
		})
	}

	schema, _, err := svc.authorize(callerAs(barista, &mockauth.FakeClient{}), "inventory_items", true)
	require.NoError(t, err)
	assert.Equal(t, "inventory_items", schema.Name)
}

func TestResourceService_ForbiddenSendsNoRequest(t *testing.T) {
	svc := NewResourceService(ResourceServiceOptions{})
	client := &mockauth.FakeClient{}
	err := svc.Delete(context.Background(), callerAs(testutil.NewProfile().Build(), client), "menu_items", "Latte")
	require.Error(t, err)
	assert.Empty(t, client.Calls())
}

func TestResourceService_DotKeysSendNoRequest(t *testing.T) {
	svc := NewResourceService(ResourceServiceOptions{})
	client := &mockauth.FakeClient{}
	manager := callerAs(testutil.NewProfile().Manager().Build(), client)
	ctx := context.Background()

	for _, key := range []string{"", ".", ".."} {
		err := svc.Delete(ctx, manager, "menu_items", key)
		assert.True(t, apperrors.IsValidation(err), "delete %q", key)

		_, err = svc.Update(ctx, manager, "menu_items", key, resource.Submission{Values: map[string]any{"price": 1.0}})
		assert.True(t, apperrors.IsValidation(err), "update %q", key)

		_, err = svc.Refill(ctx, manager, "inventory_items", key, 1)
		assert.True(t, apperrors.IsValidation(err), "refill %q", key)
	}
	assert.Empty(t, client.Calls())
}

func TestResourceService_List_Pagination(t *testing.T) {
	reg, err := resource.NewRegistry(resource.Schema{
		Name: "menu_items", Title: "Menu", Singular: "Menu item", Key: "name",
		Columns:  []resource.Column{{Header: "Name", Expr: "name"}},
		PageSize: 2,
		ReadOnly: true,
	})
	require.NoError(t, err)
	svc := NewResourceService(ResourceServiceOptions{Registry: reg})

	client := &mockauth.FakeClient{
		GetFunc: func(_ context.Context, path string, _ url.Values, out any) error {
			assert.Equal(t, "/menu_items/", path)
			rows := make([]map[string]any, 5)
			for i := range rows {
				rows[i] = map[string]any{"name": fmt.Sprintf("item-%d", i)}
			}
			return mockauth.Respond(out, rows)
		},
	}
	c := callerAs(testutil.NewProfile().Build(), client)

	first, err := svc.List(context.Background(), c, "menu_items", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 5, first.Total)
	assert.False(t, first.HasPrev())
	assert.True(t, first.HasNext())
	require.Len(t, first.Rows, 2)
	assert.Equal(t, "item-0", first.Rows[0].Key)
	assert.Equal(t, []string{"item-0"}, first.Rows[0].Cells)

	last, err := svc.List(context.Background(), c, "menu_items", 99)
	require.NoError(t, err)
	assert.Equal(t, 3, last.Page, "out-of-range pages clamp to the last page")
	require.Len(t, last.Rows, 1)
	assert.False(t, last.HasNext())

	low, err := svc.List(context.Background(), c, "menu_items", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, low.Page)
}

func TestResourceService_List_Empty(t *testing.T) {
	svc := NewResourceService(ResourceServiceOptions{})
	client := &mockauth.FakeClient{
		GetFunc: func(_ context.Context, _ string, _ url.Values, out any) error { return mockauth.Respond(out, []any{}) },
	}
	res, err := svc.List(context.Background(), callerAs(testutil.NewProfile().Build(), client), "inventory_items", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalPages)
	assert.Empty(t, res.Rows)
	assert.True(t, res.CanWrite)
}

func TestResourceService_Live(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Manager().WithEmail("boss@example.com").Build(), "pw")
	f.backend.AddEmployee(testutil.NewProfile().WithSSN("222-22-2222").Build(), "pw")
	f.backend.Seed("inventory_items", map[string]any{"name": "Milk", "unit": "l", "price_per_unit": 1.5, "amount_in_stock": 10.0})

	s := f.manager.New()
	_, err := s.Login(context.Background(), domainauth.Credentials{Username: "boss@example.com", Password: "pw"})
	require.NoError(t, err)
	svc := NewResourceService(ResourceServiceOptions{})
	ctx := context.Background()

	schema, err := svc.Schema(s, "menu_items")
	require.NoError(t, err)
	form := url.Values{"name": {"Latte"}, "size_ounces": {"12"}, "type": {"coffee"}, "price": {"4.25"}, "is_hot": {"on"}}
	sub, errs := schema.ParseForm(form, resource.ModeCreate)
	require.Empty(t, errs)

	created, err := svc.Create(ctx, s, "menu_items", sub)
	require.NoError(t, err)
	assert.Equal(t, "Latte", created["name"])

	_, row, err := svc.Get(ctx, s, "menu_items", "Latte")
	require.NoError(t, err)
	assert.Equal(t, true, row["is_hot"])

	sub, errs = schema.ParseForm(url.Values{"size_ounces": {"16"}, "type": {"coffee"}, "price": {"4.75"}}, resource.ModeUpdate)
	require.Empty(t, errs)
	_, err = svc.Update(ctx, s, "menu_items", "Latte", sub)
	require.NoError(t, err)
	stored, ok := f.backend.Row("menu_items", "Latte")
	require.True(t, ok)
	assert.InDelta(t, 4.75, stored["price"], 0.001)

	list, err := svc.List(ctx, s, "inventory_items", 1)
	require.NoError(t, err)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, []string{"Milk", "10 l", "1.5"}, list.Rows[0].Cells)

	refilled, err := svc.Refill(ctx, s, "inventory_items", "Milk", 5)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, refilled["amount_in_stock"], 0.001)
	entries, err := svc.List(ctx, s, "accounting_entries", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, entries.Total)

	_, err = svc.Refill(ctx, s, "inventory_items", "Milk", 0)
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.Refill(ctx, s, "menu_items", "Latte", 1)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, svc.Delete(ctx, s, "menu_items", "Latte"))
	_, _, err = svc.Get(ctx, s, "menu_items", "Latte")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1, f.backend.Count(http.MethodDelete, "/menu_items/Latte"))
}

func TestResourceService_Live_BackendValidation(t *testing.T) {
	f := newLiveFixture(t)
	f.backend.AddEmployee(testutil.NewProfile().Build(), "pw")
	s := f.manager.New()
	_, err := s.Login(context.Background(), domainauth.Credentials{Username: "barista@example.com", Password: "pw"})
	require.NoError(t, err)

	svc := NewResourceService(ResourceServiceOptions{})
	_, err = svc.Create(context.Background(), s, "inventory_items", resource.Submission{Values: map[string]any{"unit": "kg"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "name", apperrors.GetField(err))
}
