package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

type SeedUser struct {
	Email    string `yaml:"email"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// DefaultUsers are used when no seed file exists.
var DefaultUsers = []SeedUser{
	{Email: "john@example.com", Name: "John Doe", Password: "password123", Role: RoleUser},
	{Email: "admin@example.com", Name: "Admin User", Password: "admin123", Role: RoleAdmin},
}

func LoadSeedUsers(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultUsers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseSeedUsers(data)
}

func ParseSeedUsers(data []byte) ([]SeedUser, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed users: %w", err)
	}
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("seed user %d: email and password are required", i)
		}
		switch u.Role {
		case "":
			f.Users[i].Role = RoleUser
		case RoleUser, RoleAdmin:
		default:
			return nil, fmt.Errorf("seed user %s: unknown role %q", u.Email, u.Role)
		}
		f.Users[i].Email = strings.ToLower(strings.TrimSpace(u.Email))
	}
	return f.Users, nil
}

// SeedUsers inserts missing users and leaves existing ones untouched.
func SeedUsers(ctx context.Context, repo *GormRepo, users []SeedUser) error {
	l := logging.FromContext(ctx).With("svc", "auth.seed")
	for _, su := range users {
		hash, err := HashPassword(su.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", su.Email, err)
		}
		u := &models.User{Email: su.Email, Name: su.Name, PasswordHash: hash, Role: su.Role}
		created, err := repo.CreateUserIfNotExists(ctx, u)
		if err != nil {
			return fmt.Errorf("seed %s: %w", su.Email, err)
		}
		if created {
			l.Info("user_seeded", "email", su.Email, "role", su.Role)
		}
	}
	return nil
}
