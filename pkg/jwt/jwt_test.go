package jwt

import (
	"testing"
	"time"
)

func TestValidateAccessToken_Valid(t *testing.T) {
	service := NewService("test-secret-key", time.Hour)

	token, err := service.GenerateAccessToken("org-1", "Olivia Organizer", "olivia@example.com")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	claims, err := service.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("Failed to validate access token: %v", err)
	}

	if claims.UserID != "org-1" {
		t.Errorf("Expected UserID org-1, got %s", claims.UserID)
	}
	if claims.Name != "Olivia Organizer" {
		t.Errorf("Expected Name 'Olivia Organizer', got %s", claims.Name)
	}
	if claims.Email != "olivia@example.com" {
		t.Errorf("Expected Email olivia@example.com, got %s", claims.Email)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewService("test-secret-key", -time.Minute)

	token, err := service.GenerateAccessToken("org-1", "Olivia", "")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := service.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	issuer := NewService("secret-a", time.Hour)
	verifier := NewService("secret-b", time.Hour)

	token, _ := issuer.GenerateAccessToken("spo-1", "Sam Sponsor", "")

	if _, err := verifier.ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	service := NewService("test-secret-key", time.Hour)

	if _, err := service.ValidateAccessToken("not-a-token"); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateAccessToken_MissingUserID(t *testing.T) {
	service := NewService("test-secret-key", time.Hour)

	token, _ := service.GenerateAccessToken("", "Nobody", "")

	if _, err := service.ValidateAccessToken(token); err != ErrTokenInvalid {
		t.Errorf("Expected ErrTokenInvalid for empty user id, got %v", err)
	}
}
