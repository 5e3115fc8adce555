package tenant

import (
	"testing"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/output"
	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(schema.NewDefaults())
}

func TestCreate_DeepCopiesDefaults(t *testing.T) {
	s := newStore(t)
	c, err := s.Create("Acme", CRMSalesforce)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Divergence on the tenant copy must not leak into the defaults.
	c.CanonicalSchema["custom_field"] = "string"
	if _, ok := s.Defaults().CanonicalSchema["custom_field"]; ok {
		t.Errorf("tenant schema edit leaked into global defaults")
	}

	other, err := s.Create("Globex", CRMHubspot)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, ok := other.CanonicalSchema["custom_field"]; ok {
		t.Errorf("tenant schema edit leaked into a sibling tenant")
	}

	if c.Graph == nil || len(c.Graph.Nodes()) != 4 {
		t.Errorf("new company graph missing the seeded backbone")
	}
}

func TestCreate_ActivatesCompany(t *testing.T) {
	s := newStore(t)
	first, _ := s.Create("Acme", CRMSalesforce)
	if got := s.Active(); got == nil || got.ID != first.ID {
		t.Fatalf("Active() = %v, want newly created company", got)
	}

	second, _ := s.Create("Globex", CRMNone)
	if got := s.Active(); got.ID != second.ID {
		t.Errorf("Active() = %s, want latest created %s", got.ID, second.ID)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := newStore(t)
	if _, err := s.Create("", CRMSalesforce); err == nil {
		t.Errorf("Create with empty name succeeded")
	}
	if _, err := s.Create("Acme", CRMType("oracle")); err == nil {
		t.Errorf("Create with unknown CRM type succeeded")
	}
}

func TestDelete_ActiveSelection(t *testing.T) {
	s := newStore(t)
	a, _ := s.Create("A", CRMSalesforce)
	b, _ := s.Create("B", CRMHubspot)
	c, _ := s.Create("C", CRMCustom)

	if err := s.SetActive(b.ID); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	// Deleting the active tenant promotes the first remaining in original order.
	if err := s.Delete(b.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := s.Active(); got.ID != a.ID {
		t.Errorf("Active() after deleting active = %s, want first remaining %s", got.ID, a.ID)
	}

	// Deleting a non-active tenant leaves the selection alone.
	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := s.Active(); got.ID != a.ID {
		t.Errorf("Active() changed on non-active delete")
	}

	// Deleting the last tenant clears the selection.
	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := s.Active(); got != nil {
		t.Errorf("Active() after deleting all = %v, want nil", got)
	}
}

func TestDestinations_Lifecycle(t *testing.T) {
	s := NewStore(schema.NewDefaults(), WithHistoryCap(5))
	c, _ := s.Create("Acme", CRMSalesforce)

	d, err := s.AddDestination(c.ID, output.Config{
		Name:         "CRM Hook",
		URL:          "https://api.example.com/hooks/nexus",
		Method:       output.MethodPost,
		BodyTemplate: `{"id": "{{conversation.id}}"}`,
	})
	if err != nil {
		t.Fatalf("AddDestination() error = %v", err)
	}
	if d.HistoryCap != 5 {
		t.Errorf("HistoryCap = %d, want store setting 5", d.HistoryCap)
	}

	if _, err := s.AddDestination(c.ID, output.Config{Method: "PATCH"}); err == nil {
		t.Errorf("AddDestination with unsupported method succeeded")
	}

	updated, err := s.UpdateDestination(c.ID, d.ID, output.Config{
		Name:   "Renamed",
		URL:    d.URL,
		Method: output.MethodPut,
	})
	if err != nil {
		t.Fatalf("UpdateDestination() error = %v", err)
	}
	if updated.ID != d.ID {
		t.Errorf("update changed destination identity")
	}

	if err := s.RemoveDestination(c.ID, d.ID); err != nil {
		t.Fatalf("RemoveDestination() error = %v", err)
	}
	if _, ok := c.Destination(d.ID); ok {
		t.Errorf("destination still present after removal")
	}
}

func TestList_CreationOrder(t *testing.T) {
	s := newStore(t)
	names := []string{"A", "B", "C"}
	for _, n := range names {
		if _, err := s.Create(n, CRMNone); err != nil {
			t.Fatalf("Create(%s) error = %v", n, err)
		}
	}

	list := s.List()
	if len(list) != len(names) {
		t.Fatalf("List() returned %d companies, want %d", len(list), len(names))
	}
	for i, n := range names {
		if list[i].Name != n {
			t.Errorf("List()[%d] = %s, want %s", i, list[i].Name, n)
		}
	}
}
