package users

import "testing"

func TestNewUserValidate(t *testing.T) {
	valid := NewUser{Username: "alice-w", Email: "alice@example.com", Password: "correcthorse"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	cases := []struct {
		name string
		n    NewUser
	}{
		{"short username", NewUser{Username: "bob", Email: "bob@example.com", Password: "correcthorse"}},
		{"whitespace username", NewUser{Username: "   a  ", Email: "a@example.com", Password: "correcthorse"}},
		{"no at sign", NewUser{Username: "alice-w", Email: "example.com", Password: "correcthorse"}},
		{"short password", NewUser{Username: "alice-w", Email: "alice@example.com", Password: "short"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.n.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
