package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/startup-vision/backend/internal/model/profile"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/memory"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	return NewService(profile.NewKVStore(store), bcrypt.MinCost), store
}

func TestSignupAndLogin(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@uni.edu", RegNumber: "REG001", Password: "secret"})
	if err != nil {
		t.Fatalf("Signup err: %v", err)
	}
	if created.RegNumber != "REG001" || created.Name != "Ada" {
		t.Fatalf("unexpected profile %+v", created)
	}

	raw, _, _ := store.Get(ctx, profile.UsersKey)
	if strings.Contains(raw, `"secret"`) {
		t.Fatal("password stored in plaintext")
	}

	if _, err := svc.Login(ctx, "REG001", "secret"); err != nil {
		t.Fatalf("Login err: %v", err)
	}
	if _, err := svc.Login(ctx, "REG001", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "REG404", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSignupRejectsDuplicatesAndBlankFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	input := SignupInput{Name: "Ada", Email: "ada@uni.edu", RegNumber: "REG001", Password: "secret"}
	if _, err := svc.Signup(ctx, input); err != nil {
		t.Fatalf("Signup err: %v", err)
	}
	if _, err := svc.Signup(ctx, input); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := svc.Signup(ctx, SignupInput{Name: "Bob", RegNumber: "REG002", Password: "x"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, _ = svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@uni.edu", RegNumber: "REG001", Password: "secret"})

	name := "Ada Lovelace"
	avatar := "https://example.com/ada.png"
	blank := "  "
	updated, err := svc.UpdateProfile(ctx, "REG001", profile.Update{Name: &name, Avatar: &avatar, Email: &blank})
	if err != nil {
		t.Fatalf("UpdateProfile err: %v", err)
	}
	if updated.Name != name || updated.Avatar != avatar || updated.Email != "ada@uni.edu" {
		t.Fatalf("unexpected profile %+v", updated)
	}

	got, _ := svc.Profile(ctx, "REG001")
	if got != updated {
		t.Fatalf("update not persisted: %+v", got)
	}
	if _, err := svc.Login(ctx, "REG001", "secret"); err != nil {
		t.Fatal("password must survive a profile update")
	}

	if _, err := svc.UpdateProfile(ctx, "REG404", profile.Update{Name: &name}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, expiresAt, err := issuer.Issue("REG001", "Ada")
	if err != nil {
		t.Fatalf("Issue err: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expected expiry in the future")
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse err: %v", err)
	}
	if claims.RegNumber != "REG001" || claims.Name != "Ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue("REG001", "Ada")
	if err != nil {
		t.Fatalf("Issue err: %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestConcurrentSignupKeepsFirstAccount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const workers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < workers; i++ {
		password := fmt.Sprintf("pass-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@uni.edu", RegNumber: "R1", Password: password})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, password)
			case errors.Is(err, ErrUserExists):
				conflicts++
			default:
				t.Errorf("Signup err: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 || conflicts != workers-1 {
		t.Fatalf("expected one signup and %d conflicts, got %d and %d", workers-1, len(winners), conflicts)
	}
	if _, err := svc.Login(ctx, "R1", winners[0]); err != nil {
		t.Fatalf("winning password should still log in: %v", err)
	}
}
