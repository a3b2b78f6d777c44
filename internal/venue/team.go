package venue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradingfloor/exchange-core/internal/constraints"
)

// Team is a registered trading participant.
type Team struct {
	ID        string
	Name      string
	Role      constraints.Role
	APIKey    string
	CreatedAt time.Time
}

// ErrTeamNameTaken is returned by Register when the name is already in use.
var ErrTeamNameTaken = fmt.Errorf("venue: team name already registered")

// TeamRegistry holds registered teams and doubles as the RoleSource the fee
// ledger consults.
type TeamRegistry struct {
	mu       sync.RWMutex
	byID     map[string]*Team
	byAPIKey map[string]*Team
	byName   map[string]*Team
}

func NewTeamRegistry() *TeamRegistry {
	return &TeamRegistry{
		byID:     make(map[string]*Team),
		byAPIKey: make(map[string]*Team),
		byName:   make(map[string]*Team),
	}
}

// Register creates a new team with a freshly issued ID and API key.
func (r *TeamRegistry) Register(name string, role constraints.Role) (*Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return nil, ErrTeamNameTaken
	}
	t := &Team{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		APIKey:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	r.byID[t.ID] = t
	r.byAPIKey[t.APIKey] = t
	r.byName[t.Name] = t
	return t, nil
}

func (r *TeamRegistry) Get(id string) (*Team, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

func (r *TeamRegistry) Authenticate(apiKey string) (*Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byAPIKey[apiKey]
	if !ok {
		return nil, fmt.Errorf("venue: invalid api key")
	}
	return t, nil
}

// RoleOf implements fees.RoleSource.
func (r *TeamRegistry) RoleOf(teamID string) (constraints.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[teamID]
	if !ok {
		return 0, false
	}
	return t.Role, true
}
