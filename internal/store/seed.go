package store

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Seed is the declarative role/permission bootstrap file. Applying it is
// idempotent, so it can be pointed at on every startup.
//
//	roles:
//	  - name: Admin
//	    permissions: [venue:write, venue:read]
//	  - name: Member
//	    permissions: [venue:read]
type Seed struct {
	Roles []SeedRole `yaml:"roles"`
}

// SeedRole declares one role and the permissions granted through it.
type SeedRole struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// LoadSeed parses the YAML contents of a seed file.
func LoadSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for _, r := range seed.Roles {
		if r.Name == "" {
			return nil, fmt.Errorf("seed file: role with empty name")
		}
	}
	return &seed, nil
}

// ApplySeed ensures every declared role and permission exists and that each
// role carries exactly the granted permissions listed for it. Existing rows
// are reused, never duplicated.
func (s *Store) ApplySeed(ctx context.Context, seed *Seed) error {
	for _, r := range seed.Roles {
		roleID, err := s.EnsureRole(ctx, r.Name)
		if err != nil {
			return fmt.Errorf("seed role %q: %w", r.Name, err)
		}
		for _, p := range r.Permissions {
			permID, err := s.EnsurePermission(ctx, p)
			if err != nil {
				return fmt.Errorf("seed permission %q: %w", p, err)
			}
			if err := s.GrantPermission(ctx, roleID, permID); err != nil {
				return fmt.Errorf("seed grant %q -> %q: %w", r.Name, p, err)
			}
		}
	}
	return nil
}
