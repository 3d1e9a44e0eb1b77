package authpw

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sipiportal/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string
	roles      map[string][]string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		roles:      make(map[string][]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) AssignRole(ctx context.Context, userID, role string) error {
	m.roles[userID] = append(m.roles[userID], role)
	return nil
}

func TestSignUpCreatesUserWithBaseRole(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Name:     "Jane Doe",
		Email:    "Jane@Acme.com",
		Password: "Abcdefg1",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Email != "jane@acme.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.PasswordHash == "Abcdefg1" || user.PasswordHash == "" {
		t.Error("password must be stored hashed")
	}
	if roles := mock.roles[user.ID]; len(roles) != 1 || roles[0] != "user" {
		t.Errorf("expected base role assigned, got %v", roles)
	}
}

func TestSignUpAcceptsMultibyteName(t *testing.T) {
	svc := NewService(newMockUserStore())

	user, err := svc.SignUp(context.Background(), SignUpRequest{
		Name:     strings.Repeat("李", 100),
		Email:    "li@acme.com",
		Password: "Abcdefg1",
	})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if user.Name != strings.Repeat("李", 100) {
		t.Errorf("unexpected name %q", user.Name)
	}

	_, err = svc.SignUp(context.Background(), SignUpRequest{
		Name:     strings.Repeat("李", 101),
		Email:    "li2@acme.com",
		Password: "Abcdefg1",
	})
	if err == nil || err.Error() != "Name too long" {
		t.Fatalf("expected name length error, got %v", err)
	}
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	req := SignUpRequest{Name: "Jane Doe", Email: "jane@acme.com", Password: "Abcdefg1"}
	if _, err := svc.SignUp(context.Background(), req); err != nil {
		t.Fatalf("first SignUp() error = %v", err)
	}
	if _, err := svc.SignUp(context.Background(), req); err == nil || err.Error() != "email already registered" {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestSignUpPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{name: "too short", password: "Ab1", wantErr: "Password must be at least 8 characters"},
		{name: "multibyte under minimum", password: "Ab1測測", wantErr: "Password must be at least 8 characters"},
		{name: "multibyte at minimum", password: "Ab1測測測測測", wantErr: ""},
		{name: "no uppercase", password: "abcdefg1", wantErr: "Password must contain at least one uppercase letter"},
		{name: "no lowercase", password: "ABCDEFG1", wantErr: "Password must contain at least one lowercase letter"},
		{name: "no digit", password: "Abcdefgh", wantErr: "Password must contain at least one number"},
		{name: "valid", password: "Abcdefg1", wantErr: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockUserStore())
			_, err := svc.SignUp(context.Background(), SignUpRequest{
				Name:     "Jane Doe",
				Email:    "jane@acme.com",
				Password: tt.password,
			})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("SignUp() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("SignUp() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSignInVerifiesPassword(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Name:     "Jane Doe",
		Email:    "jane@acme.com",
		Password: "Abcdefg1",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: "jane@acme.com", Password: "Abcdefg1"})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.Name != "Jane Doe" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestSignInWrongPasswordAndUnknownEmailSameError(t *testing.T) {
	mock := newMockUserStore()
	svc := NewService(mock)

	if _, err := svc.SignUp(context.Background(), SignUpRequest{
		Name:     "Jane Doe",
		Email:    "jane@acme.com",
		Password: "Abcdefg1",
	}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	_, errWrongPassword := svc.SignIn(context.Background(), SignInRequest{Email: "jane@acme.com", Password: "Wrong999x"})
	_, errUnknownEmail := svc.SignIn(context.Background(), SignInRequest{Email: "nobody@acme.com", Password: "Abcdefg1"})

	if errWrongPassword == nil || errUnknownEmail == nil {
		t.Fatal("expected both sign-ins to fail")
	}
	if errWrongPassword.Error() != errUnknownEmail.Error() {
		t.Fatalf("errors must not reveal which field failed: %q vs %q", errWrongPassword, errUnknownEmail)
	}
}
