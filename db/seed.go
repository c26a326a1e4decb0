package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mmonsif/aeroconnect/auth"
	"github.com/mmonsif/aeroconnect/models"
)

// SeedUsers are the accounts created by Seed. The broadcast account is a
// recipient placeholder and cannot log in.
var SeedUsers = []models.User{
	{ID: models.BroadcastID, Name: "All Staff", Username: "broadcast", Role: models.RoleStaff, StaffID: "BROADCAST", Department: "General", Status: models.UserInactive},
	{ID: "user-admin", Name: "Portal Admin", Username: "admin", Role: models.RoleAdmin, StaffID: "ADM-001", Department: "Administration", Status: models.UserActive},
	{ID: "user-ops-manager", Name: "Rania Haddad", Username: "rhaddad", Role: models.RoleManager, StaffID: "OPS-100", Department: "Operations", Status: models.UserActive},
	{ID: "user-ops-supervisor", Name: "Karim Nasser", Username: "knasser", Role: models.RoleSupervisor, StaffID: "OPS-110", Department: "Operations", Status: models.UserActive, ManagerID: "user-ops-manager"},
	{ID: "user-ops-staff", Name: "Omar Fathy", Username: "ofathy", Role: models.RoleStaff, StaffID: "OPS-201", Department: "Operations", Status: models.UserActive, ManagerID: "user-ops-manager"},
	{ID: "user-sec-staff", Name: "Lina Saleh", Username: "lsaleh", Role: models.RoleStaff, StaffID: "SEC-201", Department: "Security", Status: models.UserActive, ManagerID: "user-ops-manager"},
	{ID: "user-safety", Name: "Youssef Adel", Username: "yadel", Role: models.RoleSafetyManager, StaffID: "SAF-001", Department: "Safety", Status: models.UserActive},
}

var seedTasks = []models.Task{
	{ID: "task-seed-1", Title: "Marshal stand 12 arrival", AssignedTo: "Omar Fathy", Status: models.TaskPending, Priority: models.PriorityHigh, Location: "Stand 12", Department: "Operations", CreatedBy: "user-ops-manager"},
	{ID: "task-seed-2", Title: "Perimeter gate inspection", AssignedTo: "Lina Saleh", Status: models.TaskPending, Priority: models.PriorityMedium, Location: "Gate B", Department: "Security", CreatedBy: "user-admin"},
}

// Seed inserts the seed accounts and tasks. Rows that already exist are skipped.
func Seed(ctx context.Context, store Store, password string) error {
	log.Println("🌱 Starting database seeding...")

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	for _, user := range SeedUsers {
		if user.ID != models.BroadcastID {
			user.PasswordHash = hash
		}
		if err := seedRow(ctx, store, models.TableUsers, UserRow(user)); err != nil {
			return fmt.Errorf("failed to create user %s: %w", user.Username, err)
		}
		log.Printf("  ✓ Created user: %s (role: %s)", user.Username, user.Role)
	}

	for _, task := range seedTasks {
		if err := seedRow(ctx, store, models.TableTasks, TaskRow(task)); err != nil {
			return fmt.Errorf("failed to create task %s: %w", task.ID, err)
		}
		log.Printf("  ✓ Created task: %s", task.Title)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

func seedRow(ctx context.Context, store Store, table models.Table, row models.Row) error {
	_, err := store.Mutate(ctx, table, Mutation{Op: models.OpInsert, Payload: row})
	if errors.Is(err, ErrConstraint) {
		return nil
	}
	return err
}
