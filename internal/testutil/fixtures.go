package testutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/renolink/renolink-backend/internal/domain"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string, role domain.Role) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
	}
	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, role) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Role,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedTestProject(t *testing.T, db *sql.DB, name string, clientID uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO projects (id, name, client_id, status) VALUES ($1, $2, $3, 'open')`,
		id, name, clientID,
	)
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return id
}

func SeedProjectProfessional(t *testing.T, db *sql.DB, projectID, professionalID uuid.UUID) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO project_professionals (id, project_id, professional_id, status)
		 VALUES ($1, $2, $3, 'active')`,
		id, projectID, professionalID,
	)
	if err != nil {
		t.Fatalf("seed project professional: %v", err)
	}
	return id
}

func GetEscrowHeld(t *testing.T, db *sql.DB, projectID uuid.UUID) decimal.Decimal {
	t.Helper()

	var held decimal.Decimal
	err := db.QueryRow(`SELECT escrow_held FROM projects WHERE id = $1`, projectID).Scan(&held)
	if err != nil {
		t.Fatalf("get escrow held: %v", err)
	}
	return held
}

func CountLedgerEntries(t *testing.T, db *sql.DB, projectID uuid.UUID) int {
	t.Helper()

	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		t.Fatalf("count ledger entries: %v", err)
	}
	return n
}
