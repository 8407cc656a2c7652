package sharing

import (
	"context"
	"fmt"
	"log"

	"github.com/opencrm/rowshare/internal/entities"
	"github.com/opencrm/rowshare/internal/infrastructure/metrics"
	"github.com/opencrm/rowshare/internal/tenant"
)

// DefaultOwnershipField is the record attribute holding the owning user when
// a request does not name one explicitly.
const DefaultOwnershipField = "owner"

// Level is the kind of access a caller is asking about
type Level string

const (
	LevelRead  Level = "read"
	LevelWrite Level = "write"
)

// RuleSource supplies the active sharing rules for enforcement.
// Defined here rather than importing the repositories package to avoid a
// circular dependency; the Postgres rule repository satisfies it.
type RuleSource interface {
	ListActive(ctx context.Context, tenantID string, objectType entities.ObjectType) ([]*entities.SharingRule, error)
}

// ShareFilter narrows a record-share lookup. Zero-value fields are not
// filtered on, so the same lookup serves both the bulk path (by grantee) and
// the single-record path (by object ID and grantee).
type ShareFilter struct {
	ObjectType    entities.ObjectType
	ObjectID      string
	GranteeUserID string
}

// ShareSource supplies the explicit per-record grants for enforcement
type ShareSource interface {
	ListShares(ctx context.Context, tenantID string, filter ShareFilter) ([]*entities.RecordShare, error)
}

// FilterRequest contains the parameters for filtering a collection down to
// the records a user may access
type FilterRequest struct {
	User           string
	ObjectType     entities.ObjectType
	OwnershipField string // defaults to DefaultOwnershipField
	Level          Level  // defaults to LevelRead
}

// CheckRequest contains the parameters for a single-record access check
type CheckRequest struct {
	User           string
	Record         *entities.Record
	ObjectType     entities.ObjectType
	OwnershipField string // defaults to DefaultOwnershipField
	Level          Level  // defaults to LevelRead
}

// Enforcer combines ownership, declarative sharing rules, and explicit record
// shares into one default-deny access decision. The three layers are OR'd:
// a record is accessible iff the user owns it, any active rule matches it, or
// a share grants it. Both operations read the active tenant from the context
// and fail with *ConfigurationError when it is absent; denial itself is never
// an error.
type Enforcer struct {
	rules     RuleSource
	shares    ShareSource
	collector *metrics.Collector
	logger    *log.Logger
}

// NewEnforcer creates a new Enforcer without metrics
func NewEnforcer(rules RuleSource, shares ShareSource) *Enforcer {
	return &Enforcer{
		rules:  rules,
		shares: shares,
		logger: log.Default(),
	}
}

// NewEnforcerWithMetrics creates a new Enforcer reporting decision metrics
func NewEnforcerWithMetrics(rules RuleSource, shares ShareSource, collector *metrics.Collector) *Enforcer {
	return &Enforcer{
		rules:     rules,
		shares:    shares,
		collector: collector,
		logger:    log.Default(),
	}
}

// FilterAccessible restricts coll to the records the user may access at the
// requested level. The result is deduplicated by record ID; a user with no
// access gets an empty slice, not an error.
func (e *Enforcer) FilterAccessible(ctx context.Context, coll Collection, req *FilterRequest) ([]*entities.Record, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil, &ConfigurationError{Op: "sharing: filter accessible"}
	}
	if err := validateFilterRequest(req); err != nil {
		return nil, fmt.Errorf("invalid filter request: %w", err)
	}

	expr, err := e.AccessibleExpr(ctx, tenantID, req.User, req.ObjectType, ownershipField(req.OwnershipField), level(req.Level))
	if err != nil {
		return nil, err
	}

	records, err := coll.Select(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to apply access filter: %w", err)
	}

	// A record can satisfy more than one disjunct.
	seen := make(map[string]struct{}, len(records))
	result := make([]*entities.Record, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		result = append(result, r)
	}
	return result, nil
}

// CanAccess reports whether the user may access one record at the requested
// level. It evaluates the same three layers as FilterAccessible directly
// against the record, with a targeted share lookup, so for every record r,
// CanAccess(r) agrees with r being included by FilterAccessible.
func (e *Enforcer) CanAccess(ctx context.Context, req *CheckRequest) (bool, error) {
	tenantID, ok := tenant.FromContext(ctx)
	if !ok {
		return false, &ConfigurationError{Op: "sharing: can access"}
	}
	if err := validateCheckRequest(req); err != nil {
		return false, fmt.Errorf("invalid check request: %w", err)
	}

	field := ownershipField(req.OwnershipField)
	lvl := level(req.Level)

	allowed, err := e.checkRecord(ctx, tenantID, req.User, req.Record, req.ObjectType, field, lvl)
	if err != nil {
		return false, err
	}
	if e.collector != nil {
		e.collector.RecordCheck(string(req.ObjectType), allowed)
	}
	return allowed, nil
}

func (e *Enforcer) checkRecord(ctx context.Context, tenantID, user string, record *entities.Record, objectType entities.ObjectType, field string, lvl Level) (bool, error) {
	// Ownership grants every level.
	if v, ok := record.GetField(field); ok && v != nil && looseEqual(v, user) {
		return true, nil
	}

	rules, err := e.rules.ListActive(ctx, tenantID, objectType)
	if err != nil {
		return false, fmt.Errorf("failed to load sharing rules: %w", err)
	}
	for _, rule := range rules {
		if !grantsLevel(rule.AccessLevel, lvl) {
			continue
		}
		matched, err := Evaluate(rule.Predicate, record)
		if err != nil {
			e.skipInvalidRule(rule, err)
			continue
		}
		if matched {
			return true, nil
		}
	}

	shares, err := e.shares.ListShares(ctx, tenantID, ShareFilter{
		ObjectType:    objectType,
		ObjectID:      record.ID,
		GranteeUserID: user,
	})
	if err != nil {
		return false, fmt.Errorf("failed to load record shares: %w", err)
	}
	for _, share := range shares {
		if grantsLevel(share.AccessLevel, lvl) {
			return true, nil
		}
	}

	return false, nil
}

// AccessibleExpr builds the combined ownership OR rules OR shares filter for
// a user. Store adapters can use it directly to push the whole decision down
// into a query; FilterAccessible applies it to a Collection.
func (e *Enforcer) AccessibleExpr(ctx context.Context, tenantID, user string, objectType entities.ObjectType, field string, lvl Level) (Expr, error) {
	ownershipExpr := &EqExpr{Field: field, Value: user}

	rules, err := e.rules.ListActive(ctx, tenantID, objectType)
	if err != nil {
		return nil, fmt.Errorf("failed to load sharing rules: %w", err)
	}
	ruleExprs := make([]Expr, 0, len(rules))
	for _, rule := range rules {
		if !grantsLevel(rule.AccessLevel, lvl) {
			continue
		}
		expr, err := ToFilter(rule.Predicate)
		if err != nil {
			e.skipInvalidRule(rule, err)
			continue
		}
		ruleExprs = append(ruleExprs, expr)
	}

	shares, err := e.shares.ListShares(ctx, tenantID, ShareFilter{
		ObjectType:    objectType,
		GranteeUserID: user,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load record shares: %w", err)
	}
	sharedIDs := make([]interface{}, 0, len(shares))
	for _, share := range shares {
		if grantsLevel(share.AccessLevel, lvl) {
			sharedIDs = append(sharedIDs, share.ObjectID)
		}
	}

	return Combine([]Expr{
		ownershipExpr,
		Combine(ruleExprs, CombineOr),
		&InExpr{Field: "id", Values: sharedIDs},
	}, CombineOr), nil
}

// skipInvalidRule excludes a persisted rule that no longer validates.
// Skipping narrows access, which is the safe direction, but it changes the
// access surface, so it is always logged and counted.
func (e *Enforcer) skipInvalidRule(rule *entities.SharingRule, err error) {
	e.logger.Printf("WARN: sharing rule %s (%s, tenant %s) excluded from enforcement: %v",
		rule.ID, rule.Name, rule.TenantID, err)
	if e.collector != nil {
		e.collector.RecordInvalidRuleSkip(string(rule.ObjectType))
	}
}

func grantsLevel(granted entities.AccessLevel, requested Level) bool {
	if requested == LevelWrite {
		return granted == entities.AccessReadWrite
	}
	return true
}

func ownershipField(field string) string {
	if field == "" {
		return DefaultOwnershipField
	}
	return field
}

func level(lvl Level) Level {
	if lvl == "" {
		return LevelRead
	}
	return lvl
}

func validateFilterRequest(req *FilterRequest) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.User == "" {
		return fmt.Errorf("user is required")
	}
	if err := req.ObjectType.Validate(); err != nil {
		return err
	}
	return validateLevel(req.Level)
}

func validateCheckRequest(req *CheckRequest) error {
	if req == nil {
		return fmt.Errorf("request is required")
	}
	if req.User == "" {
		return fmt.Errorf("user is required")
	}
	if req.Record == nil {
		return fmt.Errorf("record is required")
	}
	if err := req.ObjectType.Validate(); err != nil {
		return err
	}
	return validateLevel(req.Level)
}

func validateLevel(lvl Level) error {
	switch lvl {
	case "", LevelRead, LevelWrite:
		return nil
	}
	return fmt.Errorf("unknown access level: %q", string(lvl))
}
