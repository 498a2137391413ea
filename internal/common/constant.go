package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"

// AccountNumberLength is the number of decimal digits in an account number.
const AccountNumberLength = 10

// Role names seeded by the migrations.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)
