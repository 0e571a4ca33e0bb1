package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterRequest {
	return RegisterRequest{
		BusinessName: " Mama Mboga ",
		Email:        " Mama@Example.COM ",
		Password:     "sukuma-wiki",
		PhoneNumber:  "0712 345 678",
		BusinessType: "grocery",
		FullName:     "Wanjiru Kamau",
		IDNumber:     "12345678",
	}
}

func TestRegisterRequestValidateNormalizes(t *testing.T) {
	r := validRegistration()
	require.NoError(t, r.Validate())
	assert.Equal(t, "Mama Mboga", r.BusinessName)
	assert.Equal(t, "mama@example.com", r.Email)
	assert.Equal(t, "254712345678", r.PhoneNumber)
}

func TestRegisterRequestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		msg    string
	}{
		{"blank name", func(r *RegisterRequest) { r.BusinessName = "   " }, "missing required fields"},
		{"missing id", func(r *RegisterRequest) { r.IDNumber = "" }, "missing required fields"},
		{"bad email", func(r *RegisterRequest) { r.Email = "mama-at-example" }, "invalid email format"},
		{"short password", func(r *RegisterRequest) { r.Password = "short" }, "password must be at least 8 characters long"},
		{"bad phone", func(r *RegisterRequest) { r.PhoneNumber = "0612" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}
		})
	}
}
