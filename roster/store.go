/*
store.go - Persistence interface for the membership domain

PURPOSE:
  Defines the storage contract the roster services depend on. The store
  is the sole arbiter of the compound uniqueness invariants:

    classes.name, years.name, batches.name          UNIQUE
    servants.name / .email / .mobile_number         UNIQUE
    batch_years (batch, year)                       UNIQUE
    students.full_name, students.mobile_number      UNIQUE

  Uniqueness violations surface as *core.DuplicateError naming the
  conflicting field set; absent rows as *core.NotFoundError.

IMPLEMENTATIONS:
  - store/sqlite: production store, all interfaces in one struct
*/
package roster

import (
	"context"

	"github.com/khedma/ministry-engine/core"
)

// Store persists the membership domain.
type Store interface {
	// Classes
	InsertClass(ctx context.Context, c *Class) error
	GetClass(ctx context.Context, id core.ID) (*Class, error)
	ListClasses(ctx context.Context, f NameFilter) ([]Class, error)
	UpdateClass(ctx context.Context, id core.ID, name string) (*Class, error)
	DeleteClass(ctx context.Context, id core.ID) error

	// Years
	InsertYear(ctx context.Context, y *Year) error
	GetYear(ctx context.Context, id core.ID) (*Year, error)
	ListYears(ctx context.Context, f NameFilter) ([]Year, error)
	UpdateYear(ctx context.Context, id core.ID, name string) (*Year, error)
	DeleteYear(ctx context.Context, id core.ID) error

	// Servants
	InsertServant(ctx context.Context, s *Servant) error
	GetServant(ctx context.Context, id core.ID) (*Servant, error)
	ListServants(ctx context.Context, f NameFilter) ([]Servant, error)
	UpdateServant(ctx context.Context, s *Servant) (*Servant, error)
	DeleteServant(ctx context.Context, id core.ID) error

	// Batches
	InsertBatch(ctx context.Context, b *Batch) error
	GetBatch(ctx context.Context, id core.ID) (*Batch, error)
	ListBatches(ctx context.Context, f BatchFilter) ([]Batch, error)
	UpdateBatch(ctx context.Context, b *Batch) (*Batch, error)
	SetBatchCurrYear(ctx context.Context, id, yearID core.ID) error
	DeleteBatch(ctx context.Context, id core.ID) error

	// BatchYears
	InsertBatchYear(ctx context.Context, by *BatchYear) error
	GetBatchYear(ctx context.Context, id core.ID) (*BatchYear, error)
	ListBatchYears(ctx context.Context, f BatchYearFilter) ([]BatchYear, error)
	DeleteBatchYear(ctx context.Context, id core.ID) error
	DeleteBatchYearsByBatch(ctx context.Context, batchID core.ID) (int, error)

	// Students
	InsertStudent(ctx context.Context, s *Student) error
	GetStudent(ctx context.Context, id core.ID) (*Student, error)
	ListStudents(ctx context.Context, f StudentFilter) ([]Student, error)
	UpdateStudent(ctx context.Context, s *Student) (*Student, error)
	SetStudentExcluded(ctx context.Context, id core.ID, excluded bool) (*Student, error)
	DeleteStudent(ctx context.Context, id core.ID) (*Student, error)
}
