package linker

// EntityType identifies one of the canonical registries. The set is closed
// at compile time: every method below switches exhaustively over the five
// variants, so adding a registry is a type-checked change confined to this
// file plus a migration.
type EntityType string

const (
	EntityTypeGeneralPartner   EntityType = "gp"
	EntityTypeFund             EntityType = "fund"
	EntityTypePortfolioCompany EntityType = "pc"
	EntityTypeLimitedPartner   EntityType = "lp"
	EntityTypeServiceProvider  EntityType = "sp"
)

// AllEntityTypes returns every registry type in declaration order. The
// orchestrator iterates this slice, which fixes bucket processing order
// across runs.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeGeneralPartner,
		EntityTypeFund,
		EntityTypePortfolioCompany,
		EntityTypeLimitedPartner,
		EntityTypeServiceProvider,
	}
}

// Valid reports whether t is one of the known registry types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeGeneralPartner, EntityTypeFund, EntityTypePortfolioCompany,
		EntityTypeLimitedPartner, EntityTypeServiceProvider:
		return true
	}
	return false
}

// BucketKey returns the key under which the extraction payload groups this
// type's mentions.
func (t EntityType) BucketKey() string {
	switch t {
	case EntityTypeGeneralPartner:
		return "general_partners"
	case EntityTypeFund:
		return "funds"
	case EntityTypePortfolioCompany:
		return "portfolio_companies"
	case EntityTypeLimitedPartner:
		return "limited_partners"
	case EntityTypeServiceProvider:
		return "service_providers"
	}
	return ""
}

// DisplayName returns a human-readable name for CLI output.
func (t EntityType) DisplayName() string {
	switch t {
	case EntityTypeGeneralPartner:
		return "general partner"
	case EntityTypeFund:
		return "fund"
	case EntityTypePortfolioCompany:
		return "portfolio company"
	case EntityTypeLimitedPartner:
		return "limited partner"
	case EntityTypeServiceProvider:
		return "service provider"
	}
	return string(t)
}

// EntityTypeFromBucket maps a payload bucket key back to its registry type.
func EntityTypeFromBucket(key string) (EntityType, bool) {
	for _, t := range AllEntityTypes() {
		if t.BucketKey() == key {
			return t, true
		}
	}
	return "", false
}

// EntityTypeFromTag maps a short type tag (as stored on links and accepted
// on the CLI) to its registry type.
func EntityTypeFromTag(tag string) (EntityType, bool) {
	t := EntityType(tag)
	if t.Valid() {
		return t, true
	}
	return "", false
}

// selectExactSQL returns the exact-match lookup for this registry. Each
// variant carries its own literal query so no identifier is ever built from
// runtime input; the mention only ever travels as a bind parameter.
// Duplicate canonical names resolve deterministically to the lowest id.
func (t EntityType) selectExactSQL() string {
	switch t {
	case EntityTypeGeneralPartner:
		return `SELECT id FROM general_partners WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) ORDER BY id ASC LIMIT 1`
	case EntityTypeFund:
		return `SELECT id FROM funds WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) ORDER BY id ASC LIMIT 1`
	case EntityTypePortfolioCompany:
		return `SELECT id FROM portfolio_companies WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) ORDER BY id ASC LIMIT 1`
	case EntityTypeLimitedPartner:
		return `SELECT id FROM limited_partners WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) ORDER BY id ASC LIMIT 1`
	case EntityTypeServiceProvider:
		return `SELECT id FROM service_providers WHERE tenant_id = $1 AND LOWER(name) = LOWER($2) ORDER BY id ASC LIMIT 1`
	}
	return ""
}

// selectFuzzySQL returns the substring-containment lookup for this registry.
func (t EntityType) selectFuzzySQL() string {
	switch t {
	case EntityTypeGeneralPartner:
		return `SELECT id FROM general_partners WHERE tenant_id = $1 AND name ILIKE '%' || $2 || '%' ORDER BY id ASC LIMIT 1`
	case EntityTypeFund:
		return `SELECT id FROM funds WHERE tenant_id = $1 AND name ILIKE '%' || $2 || '%' ORDER BY id ASC LIMIT 1`
	case EntityTypePortfolioCompany:
		return `SELECT id FROM portfolio_companies WHERE tenant_id = $1 AND name ILIKE '%' || $2 || '%' ORDER BY id ASC LIMIT 1`
	case EntityTypeLimitedPartner:
		return `SELECT id FROM limited_partners WHERE tenant_id = $1 AND name ILIKE '%' || $2 || '%' ORDER BY id ASC LIMIT 1`
	case EntityTypeServiceProvider:
		return `SELECT id FROM service_providers WHERE tenant_id = $1 AND name ILIKE '%' || $2 || '%' ORDER BY id ASC LIMIT 1`
	}
	return ""
}
