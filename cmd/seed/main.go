// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"danus-dashboard/backend/internal/config"
	"danus-dashboard/backend/internal/db"
	identitydomain "danus-dashboard/backend/internal/identity/domain"
	identityrepo "danus-dashboard/backend/internal/identity/repository"
	membershipdomain "danus-dashboard/backend/internal/membership/domain"
	membershiprepo "danus-dashboard/backend/internal/membership/repository"
	orgdomain "danus-dashboard/backend/internal/organization/domain"
	orgrepo "danus-dashboard/backend/internal/organization/repository"
	"danus-dashboard/backend/internal/security"
	userdomain "danus-dashboard/backend/internal/user/domain"
	userrepo "danus-dashboard/backend/internal/user/repository"
)

const devPassword = "password123"

type seedUser struct {
	id, email, name string
	entrepreneur    bool
}

type seedMembership struct {
	id, userID, orgID string
	role              membershipdomain.Role
}

var (
	seedUsers = []seedUser{
		{"dev-user-001", "dev@example.com", "Dewi Admin", true},
		{"dev-user-002", "moderator@example.com", "Budi Moderator", true},
		{"dev-user-003", "member@example.com", "Sari Member", false},
	}
	seedOrgs = []*orgdomain.Org{
		{
			ID: "dev-org-001", Name: "Kopi Nusantara", Description: "Community coffee roastery",
			Target: 50000000, Raised: 12500000,
			Location: &orgdomain.Location{Latitude: -6.2088, Longitude: 106.8456},
		},
		{
			ID: "dev-org-002", Name: "Batik Muda", Description: "Young batik artisans collective",
			Target: 20000000, Raised: 18000000,
			Location: &orgdomain.Location{Latitude: -6.9175, Longitude: 107.6191},
		},
	}
	seedMemberships = []seedMembership{
		{"dev-membership-001", "dev-user-001", "dev-org-001", membershipdomain.RoleAdmin},
		{"dev-membership-002", "dev-user-002", "dev-org-001", membershipdomain.RoleModerator},
		{"dev-membership-003", "dev-user-003", "dev-org-001", membershipdomain.RoleMember},
		{"dev-membership-004", "dev-user-001", "dev-org-002", membershipdomain.RoleMember},
	}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, seedUsers[0].email)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", seedUsers[0].email)
		os.Exit(0)
	}

	passwordHash, err := security.NewPasswordHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()

	for i, su := range seedUsers {
		if err := users.Create(ctx, &userdomain.User{
			ID:             su.id,
			Email:          su.email,
			Name:           su.name,
			IsEntrepreneur: su.entrepreneur,
			Status:         userdomain.UserStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			log.Fatalf("create user %s: %v", su.email, err)
		}
		if err := identities.Create(ctx, &identitydomain.Identity{
			ID:           fmt.Sprintf("dev-identity-%03d", i+1),
			UserID:       su.id,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   su.email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}); err != nil {
			log.Fatalf("create identity %s: %v", su.email, err)
		}
	}

	if cfg.MembershipBackend == config.BackendRecords {
		log.Printf("MEMBERSHIP_BACKEND=records: organizations and memberships live in %s; not seeding them.", cfg.RecordServiceURL)
	} else {
		orgs := orgrepo.NewPostgresRepository(conn)
		for _, o := range seedOrgs {
			o.Status = orgdomain.OrgStatusActive
			o.CreatedAt = now
			if err := orgs.CreateOrganization(ctx, o); err != nil {
				log.Fatalf("create org %s: %v", o.Name, err)
			}
		}
		memberships := membershiprepo.NewPostgresRepository(conn)
		for _, sm := range seedMemberships {
			if err := memberships.Create(ctx, &membershipdomain.Membership{
				ID:        sm.id,
				UserID:    sm.userID,
				OrgID:     sm.orgID,
				Role:      sm.role,
				CreatedAt: now,
			}); err != nil {
				log.Fatalf("create membership %s: %v", sm.id, err)
			}
		}
	}

	log.Println("Seed completed successfully.")
	for _, su := range seedUsers {
		fmt.Printf("Login: %s / %s\n", su.email, devPassword)
	}
}
