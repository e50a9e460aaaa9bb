package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMX_RequestDetection(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Hx-Request", "true")
	assert.True(t, IsHTMX(r))
	assert.True(t, WantsPartial(r))
	assert.True(t, IsAJAX(r))

	r2 := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.False(t, IsHTMX(r2))
	assert.False(t, WantsPartial(r2))
	assert.False(t, IsAJAX(r2))
}

func TestHTMX_HistoryRestoreWantsFullPage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("Hx-Request", "true")
	r.Header.Set("Hx-History-Restore-Request", "true")
	assert.True(t, IsHistoryRestore(r))
	assert.False(t, WantsPartial(r))
}

func TestIsAJAX_AcceptAndXHR(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r.Header.Set("Accept", "application/json")
	assert.True(t, IsAJAX(r))

	r2 := httptest.NewRequest(http.MethodPost, "/logout", nil)
	r2.Header.Set("X-Requested-With", "XMLHttpRequest")
	assert.True(t, IsAJAX(r2))
}

func TestHTMX_ResponseHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SetHXTrigger(rr, "saved", map[string]any{"key": "Latte"})
	HTMX(rr).Redirect("/r/menu_items")

	res := rr.Result()
	t.Cleanup(func() { _ = res.Body.Close() })
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "/r/menu_items", res.Header.Get("Hx-Redirect"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Header.Get("Hx-Trigger")), &payload))
	assert.Contains(t, payload, "saved")
}

func TestRedirectAfterPost(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/r/menu_items", nil)
	rr := httptest.NewRecorder()
	redirectAfterPost(rr, r, "/r/menu_items")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/r/menu_items", rr.Header().Get("Location"))

	r.Header.Set("Hx-Request", "true")
	rr = httptest.NewRecorder()
	redirectAfterPost(rr, r, "/r/menu_items")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "/r/menu_items", rr.Header().Get("Hx-Redirect"))
}

func TestTriggerToast_IgnoresBlank(t *testing.T) {
	rr := httptest.NewRecorder()
	triggerToast(rr, "  ", "error")
	assert.Empty(t, rr.Header().Get("Hx-Trigger"))

	triggerToast(rr, "Saved", "success")
	assert.Contains(t, rr.Header().Get("Hx-Trigger"), "showToast")
}

func TestSetHXTrigger_MergesEvents(t *testing.T) {
	rr := httptest.NewRecorder()
	triggerToast(rr, "Saved", "success")
	SetHXTrigger(rr, "nav:activate", map[string]string{"path": "/r/menu_items"})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(rr.Header().Get("Hx-Trigger")), &payload))
	assert.Contains(t, payload, "showToast")
	assert.Contains(t, payload, "nav:activate")
}
