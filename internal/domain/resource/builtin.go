package resource

import domainauth "github.com/target/coffee-ui/internal/domain/auth"

// Builtin returns the schemas for the coffee-shop backend collections.
func Builtin() []Schema {
	return []Schema{
		{
			Name:     "employees",
			Title:    "Employees",
			Singular: "Employee",
			Key:      "ssn",
			Fields: []Field{
				{Name: "ssn", Label: "SSN", Kind: KindText, Required: true, Immutable: true, Rules: "max=11"},
				{Name: "name", Label: "Name", Kind: KindText, Required: true},
				{Name: "email", Label: "Email", Kind: KindEmail, Required: true},
				{Name: "salary", Label: "Salary", Kind: KindNumber, Required: true, Rules: "gte=0"},
				{Name: "password", Label: "Password", Kind: KindPassword, Required: true, OptionalOnUpdate: true},
			},
			Columns: []Column{
				{Header: "SSN", Expr: "ssn"},
				{Header: "Name", Expr: "name"},
				{Header: "Email", Expr: "email"},
				{Header: "Salary", Expr: "salary"},
			},
			ReadRole:  domainauth.RoleManager,
			WriteRole: domainauth.RoleManager,
		},
		{
			Name:     "inventory_items",
			Title:    "Inventory",
			Singular: "Inventory item",
			Key:      "name",
			Fields: []Field{
				{Name: "name", Label: "Name", Kind: KindText, Required: true, Immutable: true},
				{Name: "unit", Label: "Unit", Kind: KindText, Required: true},
				{Name: "price_per_unit", Label: "Price per unit", Kind: KindNumber, Required: true, Rules: "gte=0"},
				{Name: "amount_in_stock", Label: "Amount in stock", Kind: KindNumber, Required: true, Rules: "gte=0"},
			},
			Columns: []Column{
				{Header: "Name", Expr: "name"},
				{Header: "Stock", Expr: "join(' ', [to_string(amount_in_stock), unit])"},
				{Header: "Price per unit", Expr: "price_per_unit"},
			},
			Refill: true,
		},
		{
			Name:     "menu_items",
			Title:    "Menu",
			Singular: "Menu item",
			Key:      "name",
			Fields: []Field{
				{Name: "name", Label: "Name", Kind: KindText, Required: true, Immutable: true},
				{Name: "size_ounces", Label: "Size (oz)", Kind: KindInteger, Required: true, Rules: "gt=0"},
				{Name: "type", Label: "Type", Kind: KindText, Required: true},
				{Name: "price", Label: "Price", Kind: KindNumber, Required: true, Rules: "gte=0"},
				{Name: "is_hot", Label: "Served hot", Kind: KindBool},
			},
			Columns: []Column{
				{Header: "Name", Expr: "name"},
				{Header: "Type", Expr: "type"},
				{Header: "Size (oz)", Expr: "size_ounces"},
				{Header: "Price", Expr: "price"},
				{Header: "Hot", Expr: "is_hot"},
			},
			WriteRole: domainauth.RoleManager,
		},
		{
			Name:     "work_schedules",
			Title:    "Work schedules",
			Singular: "Shift",
			Key:      "ssn",
			Columns: []Column{
				{Header: "SSN", Expr: "ssn"},
				{Header: "Day", Expr: "day_of_week"},
				{Header: "Start", Expr: "start_time"},
				{Header: "End", Expr: "end_time"},
			},
			ReadOnly: true,
		},
		{
			Name:     "accounting_entries",
			Title:    "Accounting",
			Singular: "Entry",
			Key:      "timestamp",
			Columns: []Column{
				{Header: "Timestamp", Expr: "timestamp"},
				{Header: "Balance", Expr: "balance"},
			},
			ReadRole: domainauth.RoleManager,
			ReadOnly: true,
		},
	}
}

// DefaultRegistry returns a registry of the built-in schemas.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic("resource: invalid built-in schema: " + err.Error())
	}
	return r
}
