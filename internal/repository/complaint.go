package repository

import (
	"time"

	"github.com/Brownie44l1/smartseva-api/internal/triage"
)

// Complaint is one classified upload. The triage fields encode at the top
// level, the same shape /predict/image returns.
type Complaint struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	StoredPath string `json:"-"`
	triage.Result
	CreatedAt time.Time `json:"created_at"`
}

// ComplaintRepository defines the interface for complaint history operations.
type ComplaintRepository interface {
	Insert(c *Complaint) error
	GetByID(id string) (*Complaint, error)
	List(limit int) ([]Complaint, error)
}
