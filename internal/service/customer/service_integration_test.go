package customer

import (
	"context"
	"log"
	"os"
	"testing"

	"storefront/internal/db/dbtest"
	customerrepo "storefront/internal/repository/customer"
	tokenrepo "storefront/internal/repository/token"
)

func TestSignupAndLogin_Integration(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(t)

	repo := customerrepo.NewPostgres(pool, log.New(os.Stdout, "[test] ", log.LstdFlags))
	svc := New(repo, tokenrepo.NewPostgres(pool, nil))

	password := "Abcdefg1"
	session, err := svc.Signup(ctx, SignupInput{
		Email:     "integration@example.com",
		Password:  password,
		FirstName: "Int",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if session.Customer.ID == "" {
		t.Fatalf("expected created customer, got %+v", session.Customer)
	}

	login, err := svc.Login(ctx, "Integration@Example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("expected tokens, got %+v", login)
	}

	c, err := svc.LookupByToken(ctx, login.AccessToken)
	if err != nil || c.ID != session.Customer.ID {
		t.Fatalf("lookup: %v %+v", err, c)
	}
}
