package memory

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cooarq/cooarq-portal/internal/rbac"
)

// seedFile is the YAML layout of a seed file:
//
//	users:
//	  - email: ana@example.com
//	    password: Sup3r-secret!
//	    full_name: Ana Souza
//	    role: manager
//	    grants:
//	      crm: [read, write]
//	      marketing: [read]
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Email    string              `yaml:"email"`
	Password string              `yaml:"password"`
	FullName string              `yaml:"full_name"`
	Role     string              `yaml:"role"`
	Grants   map[string][]string `yaml:"grants"`
}

// ParseSeeds decodes a YAML seed document.
func ParseSeeds(data []byte) ([]Seed, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("memory: parse seeds: %w", err)
	}
	seeds := make([]Seed, 0, len(doc.Users))
	for i, u := range doc.Users {
		s := Seed{
			Email:    strings.TrimSpace(u.Email),
			Password: u.Password,
			FullName: strings.TrimSpace(u.FullName),
			Role:     rbac.Role(strings.ToLower(strings.TrimSpace(u.Role))),
		}
		if s.Email == "" || s.Password == "" {
			return nil, fmt.Errorf("memory: seed %d: email and password are required", i)
		}
		if s.Role != "" && !s.Role.Valid() {
			return nil, fmt.Errorf("memory: seed %s: invalid role %q", s.Email, u.Role)
		}
		for rawModule, actions := range u.Grants {
			module, err := rbac.ParseModule(rawModule)
			if err != nil {
				return nil, fmt.Errorf("memory: seed %s: %w", s.Email, err)
			}
			g := rbac.Grant{Module: module}
			for _, a := range actions {
				switch rbac.Action(strings.ToLower(strings.TrimSpace(a))) {
				case rbac.ActionRead:
					g.CanRead = true
				case rbac.ActionWrite:
					g.CanWrite = true
				case rbac.ActionDelete:
					g.CanDelete = true
				default:
					return nil, fmt.Errorf("memory: seed %s: unknown action %q", s.Email, a)
				}
			}
			s.Grants = append(s.Grants, g)
		}
		sort.Slice(s.Grants, func(i, j int) bool { return s.Grants[i].Module < s.Grants[j].Module })
		seeds = append(seeds, s)
	}
	return seeds, nil
}

// LoadSeedFile reads and decodes the seed file at path.
func LoadSeedFile(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: read seeds: %w", err)
	}
	return ParseSeeds(data)
}

// SeedUsers creates every seed and returns the new user ids in order.
func (b *Backend) SeedUsers(seeds []Seed) ([]string, error) {
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		id, err := b.SeedUser(s)
		if err != nil {
			return ids, fmt.Errorf("memory: seed %s: %w", s.Email, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
