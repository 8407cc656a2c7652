package sharing

import (
	"context"
	"errors"
	"testing"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/tenant"
)

type mockRuleSource struct {
	rules []*entities.SharingRule
}

func (m *mockRuleSource) ListActive(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error) {
	out := make([]*entities.SharingRule, 0)
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.ObjectType == objectType && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockShareSource struct {
	shares []*entities.RecordShare
}

func (m *mockShareSource) ListShares(ctx context.Context, tenantID string, filter ShareFilter) ([]*entities.RecordShare, error) {
	out := make([]*entities.RecordShare, 0)
	for _, s := range m.shares {
		if s.TenantID != tenantID {
			continue
		}
		if filter.ObjectType != "" && s.ObjectType != filter.ObjectType {
			continue
		}
		if filter.ObjectID != "" && s.ObjectID != filter.ObjectID {
			continue
		}
		if filter.GranteeUserID != "" && s.GranteeUserID != filter.GranteeUserID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func leadRule(id, tenantID string, predicate *entities.Predicate, level entities.AccessLevel, active bool) *entities.SharingRule {
	return &entities.SharingRule{
		ID:          id,
		TenantID:    tenantID,
		Name:        "rule " + id,
		ObjectType:  entities.ObjectTypeLead,
		Predicate:   predicate,
		AccessLevel: level,
		IsActive:    active,
	}
}

func lead(id, owner, status string) *entities.Record {
	fields := map[string]interface{}{"status": status}
	if owner != "" {
		fields["owner"] = owner
	}
	return &entities.Record{ID: id, ObjectType: entities.ObjectTypeLead, Fields: fields}
}

func tenantCtx(id string) context.Context {
	return tenant.WithTenant(context.Background(), id)
}

func recordIDs(records []*entities.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

func TestEnforcer_DefaultDeny(t *testing.T) {
	enforcer := NewEnforcer(&mockRuleSource{}, &mockShareSource{})
	record := lead("l1", "alice", "new")
	ctx := tenantCtx("t1")

	allowed, err := enforcer.CanAccess(ctx, &CheckRequest{
		User:       "bob",
		Record:     record,
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if allowed {
		t.Error("CanAccess = true for a record with no owner match, no rules, no shares")
	}

	coll := &MemoryCollection{Records: []*entities.Record{record}}
	records, err := enforcer.FilterAccessible(ctx, coll, &FilterRequest{
		User:       "bob",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("FilterAccessible returned %v, want empty", recordIDs(records))
	}
}

func TestEnforcer_OwnershipSufficiency(t *testing.T) {
	enforcer := NewEnforcer(&mockRuleSource{}, &mockShareSource{})
	record := lead("l1", "alice", "new")

	allowed, err := enforcer.CanAccess(tenantCtx("t1"), &CheckRequest{
		User:       "alice",
		Record:     record,
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if !allowed {
		t.Error("owner should access their record regardless of rules and shares")
	}
}

func TestEnforcer_NoTenantContext(t *testing.T) {
	enforcer := NewEnforcer(&mockRuleSource{}, &mockShareSource{})
	record := lead("l1", "alice", "new")

	_, err := enforcer.CanAccess(context.Background(), &CheckRequest{
		User:       "alice",
		Record:     record,
		ObjectType: entities.ObjectTypeLead,
	})
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("CanAccess without tenant: error = %v, want *ConfigurationError", err)
	}

	_, err = enforcer.FilterAccessible(context.Background(), &MemoryCollection{}, &FilterRequest{
		User:       "alice",
		ObjectType: entities.ObjectTypeLead,
	})
	if !errors.As(err, &confErr) {
		t.Errorf("FilterAccessible without tenant: error = %v, want *ConfigurationError", err)
	}
}

// Three leads, one rule on status, two owners.
func TestEnforcer_RulesAndOwnershipScenario(t *testing.T) {
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true),
	}}
	enforcer := NewEnforcer(rules, &mockShareSource{})
	ctx := tenantCtx("t1")

	l1 := lead("l1", "u1", "new")
	l2 := lead("l2", "u1", "qualified")
	l3 := lead("l3", "u2", "new")
	coll := &MemoryCollection{Records: []*entities.Record{l1, l2, l3}}

	records, err := enforcer.FilterAccessible(ctx, coll, &FilterRequest{
		User:       "u2",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible: %v", err)
	}
	got := recordIDs(records)
	if len(got) != 2 || got[0] != "l2" || got[1] != "l3" {
		t.Errorf("FilterAccessible = %v, want [l2 l3]", got)
	}

	checks := []struct {
		record *entities.Record
		want   bool
	}{
		{l1, false}, // neither owned nor matching the rule
		{l2, true},  // via rule
		{l3, true},  // via ownership
	}
	for _, tt := range checks {
		allowed, err := enforcer.CanAccess(ctx, &CheckRequest{
			User:       "u2",
			Record:     tt.record,
			ObjectType: entities.ObjectTypeLead,
		})
		if err != nil {
			t.Fatalf("CanAccess(%s): %v", tt.record.ID, err)
		}
		if allowed != tt.want {
			t.Errorf("CanAccess(u2, %s) = %v, want %v", tt.record.ID, allowed, tt.want)
		}
	}
}

func TestEnforcer_OrSemanticsAcrossRules(t *testing.T) {
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true),
		leadRule("r2", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "converted"}, entities.AccessReadOnly, true),
	}}
	enforcer := NewEnforcer(rules, &mockShareSource{})

	coll := &MemoryCollection{Records: []*entities.Record{
		lead("l1", "u1", "qualified"),
		lead("l2", "u1", "converted"),
		lead("l3", "u1", "new"),
	}}
	records, err := enforcer.FilterAccessible(tenantCtx("t1"), coll, &FilterRequest{
		User:       "stranger",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible: %v", err)
	}
	got := recordIDs(records)
	if len(got) != 2 || got[0] != "l1" || got[1] != "l2" {
		t.Errorf("FilterAccessible = %v, want [l1 l2]", got)
	}
}

func TestEnforcer_InactiveRuleExcluded(t *testing.T) {
	rule := leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true)
	enforcer := NewEnforcer(&mockRuleSource{rules: []*entities.SharingRule{rule}}, &mockShareSource{})
	record := lead("l1", "u1", "qualified")
	ctx := tenantCtx("t1")
	req := &CheckRequest{User: "u2", Record: record, ObjectType: entities.ObjectTypeLead}

	allowed, err := enforcer.CanAccess(ctx, req)
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if !allowed {
		t.Fatal("active rule should grant access")
	}

	rule.IsActive = false
	allowed, err = enforcer.CanAccess(ctx, req)
	if err != nil {
		t.Fatalf("CanAccess after deactivation: %v", err)
	}
	if allowed {
		t.Error("deactivated rule should stop granting access immediately")
	}
}

func TestEnforcer_ShareGrantsSingleRecord(t *testing.T) {
	shares := &mockShareSource{shares: []*entities.RecordShare{
		{
			ID: "s1", TenantID: "t1", ObjectType: entities.ObjectTypeLead,
			ObjectID: "l1", GranteeUserID: "bob", AccessLevel: entities.AccessReadOnly,
		},
	}}
	enforcer := NewEnforcer(&mockRuleSource{}, shares)
	ctx := tenantCtx("t1")

	shared := lead("l1", "alice", "new")
	unshared := lead("l2", "alice", "new") // same owner, not shared

	coll := &MemoryCollection{Records: []*entities.Record{shared, unshared}}
	records, err := enforcer.FilterAccessible(ctx, coll, &FilterRequest{
		User:       "bob",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible: %v", err)
	}
	got := recordIDs(records)
	if len(got) != 1 || got[0] != "l1" {
		t.Errorf("FilterAccessible = %v, want exactly [l1]", got)
	}

	allowed, err := enforcer.CanAccess(ctx, &CheckRequest{User: "bob", Record: shared, ObjectType: entities.ObjectTypeLead})
	if err != nil {
		t.Fatalf("CanAccess(l1): %v", err)
	}
	if !allowed {
		t.Error("share should grant access to the shared record")
	}

	allowed, err = enforcer.CanAccess(ctx, &CheckRequest{User: "bob", Record: unshared, ObjectType: entities.ObjectTypeLead})
	if err != nil {
		t.Fatalf("CanAccess(l2): %v", err)
	}
	if allowed {
		t.Error("share must not leak to other records of the same owner")
	}
}

// CanAccess and FilterAccessible must agree on every record in the universe.
func TestEnforcer_ConsistencyLaw(t *testing.T) {
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadWrite, true),
		leadRule("r2", "t1", &entities.Predicate{Field: "status", Operator: entities.OpNin, Value: []interface{}{"new", "archived"}}, entities.AccessReadOnly, true),
		leadRule("r3", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "lost"}, entities.AccessReadOnly, false),
	}}
	shares := &mockShareSource{shares: []*entities.RecordShare{
		{ID: "s1", TenantID: "t1", ObjectType: entities.ObjectTypeLead, ObjectID: "l4", GranteeUserID: "bob", AccessLevel: entities.AccessReadWrite},
		{ID: "s2", TenantID: "t2", ObjectType: entities.ObjectTypeLead, ObjectID: "l5", GranteeUserID: "bob", AccessLevel: entities.AccessReadOnly},
	}}
	enforcer := NewEnforcer(rules, shares)

	universe := []*entities.Record{
		lead("l1", "alice", "new"),
		lead("l2", "bob", "new"),
		lead("l3", "alice", "qualified"),
		lead("l4", "alice", "archived"),
		lead("l5", "alice", "new"),
		lead("l6", "", "contacted"),
	}

	for _, user := range []string{"alice", "bob", "carol"} {
		for _, lvl := range []Level{LevelRead, LevelWrite} {
			ctx := tenantCtx("t1")
			filtered, err := enforcer.FilterAccessible(ctx, &MemoryCollection{Records: universe}, &FilterRequest{
				User:       user,
				ObjectType: entities.ObjectTypeLead,
				Level:      lvl,
			})
			if err != nil {
				t.Fatalf("FilterAccessible(%s, %s): %v", user, lvl, err)
			}
			included := make(map[string]bool, len(filtered))
			for _, r := range filtered {
				included[r.ID] = true
			}

			for _, record := range universe {
				allowed, err := enforcer.CanAccess(ctx, &CheckRequest{
					User:       user,
					Record:     record,
					ObjectType: entities.ObjectTypeLead,
					Level:      lvl,
				})
				if err != nil {
					t.Fatalf("CanAccess(%s, %s, %s): %v", user, record.ID, lvl, err)
				}
				if allowed != included[record.ID] {
					t.Errorf("user %s level %s record %s: CanAccess = %v but FilterAccessible inclusion = %v",
						user, lvl, record.ID, allowed, included[record.ID])
				}
			}
		}
	}
}

func TestEnforcer_WriteLevel(t *testing.T) {
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true),
	}}
	shares := &mockShareSource{shares: []*entities.RecordShare{
		{ID: "s1", TenantID: "t1", ObjectType: entities.ObjectTypeLead, ObjectID: "l1", GranteeUserID: "bob", AccessLevel: entities.AccessReadOnly},
	}}
	enforcer := NewEnforcer(rules, shares)
	ctx := tenantCtx("t1")
	record := lead("l1", "alice", "qualified")

	tests := []struct {
		name  string
		user  string
		level Level
		want  bool
	}{
		{"read through read_only rule", "carol", LevelRead, true},
		{"write denied by read_only rule", "carol", LevelWrite, false},
		{"write denied by read_only share", "bob", LevelWrite, false},
		{"owner always writes", "alice", LevelWrite, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := enforcer.CanAccess(ctx, &CheckRequest{
				User:       tt.user,
				Record:     record,
				ObjectType: entities.ObjectTypeLead,
				Level:      tt.level,
			})
			if err != nil {
				t.Fatalf("CanAccess: %v", err)
			}
			if allowed != tt.want {
				t.Errorf("CanAccess = %v, want %v", allowed, tt.want)
			}
		})
	}
}

func TestEnforcer_InvalidPersistedRuleSkipped(t *testing.T) {
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		// Persisted before an operator rename, say; no longer validates.
		leadRule("broken", "t1", &entities.Predicate{Field: "status", Operator: "matches", Value: "x"}, entities.AccessReadOnly, true),
		leadRule("good", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true),
	}}
	enforcer := NewEnforcer(rules, &mockShareSource{})
	ctx := tenantCtx("t1")

	qualified := lead("l1", "alice", "qualified")
	other := lead("l2", "alice", "new")

	records, err := enforcer.FilterAccessible(ctx, &MemoryCollection{Records: []*entities.Record{qualified, other}}, &FilterRequest{
		User:       "bob",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible should not fail on a broken persisted rule: %v", err)
	}
	got := recordIDs(records)
	if len(got) != 1 || got[0] != "l1" {
		t.Errorf("FilterAccessible = %v, want [l1] (broken rule skipped, good rule applied)", got)
	}

	allowed, err := enforcer.CanAccess(ctx, &CheckRequest{User: "bob", Record: qualified, ObjectType: entities.ObjectTypeLead})
	if err != nil {
		t.Fatalf("CanAccess should not fail on a broken persisted rule: %v", err)
	}
	if !allowed {
		t.Error("good rule should still grant access when a sibling rule is broken")
	}
}

func TestEnforcer_DeduplicatesDisjunctOverlap(t *testing.T) {
	// Owned by bob AND matching the rule AND shared to bob: one result row.
	rules := &mockRuleSource{rules: []*entities.SharingRule{
		leadRule("r1", "t1", &entities.Predicate{Field: "status", Operator: entities.OpEq, Value: "qualified"}, entities.AccessReadOnly, true),
	}}
	shares := &mockShareSource{shares: []*entities.RecordShare{
		{ID: "s1", TenantID: "t1", ObjectType: entities.ObjectTypeLead, ObjectID: "l1", GranteeUserID: "bob", AccessLevel: entities.AccessReadOnly},
	}}
	enforcer := NewEnforcer(rules, shares)

	coll := &MemoryCollection{Records: []*entities.Record{lead("l1", "bob", "qualified")}}
	records, err := enforcer.FilterAccessible(tenantCtx("t1"), coll, &FilterRequest{
		User:       "bob",
		ObjectType: entities.ObjectTypeLead,
	})
	if err != nil {
		t.Fatalf("FilterAccessible: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("FilterAccessible returned %d records, want 1", len(records))
	}
}

func TestEnforcer_CustomOwnershipField(t *testing.T) {
	enforcer := NewEnforcer(&mockRuleSource{}, &mockShareSource{})
	record := &entities.Record{
		ID:         "d1",
		ObjectType: entities.ObjectTypeDeal,
		Fields:     map[string]interface{}{"assigned_to": "dana"},
	}

	allowed, err := enforcer.CanAccess(tenantCtx("t1"), &CheckRequest{
		User:           "dana",
		Record:         record,
		ObjectType:     entities.ObjectTypeDeal,
		OwnershipField: "assigned_to",
	})
	if err != nil {
		t.Fatalf("CanAccess: %v", err)
	}
	if !allowed {
		t.Error("ownership through a custom field should grant access")
	}
}
