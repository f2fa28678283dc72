/*

This file contains the identity type used across the custodian. Accounts in
the external token ledgers are keyed by these addresses, including the vault
contract itself, the controller, and withdrawal destinations.

*/

package types

import (
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// Address identifies an account in the external token ledgers.
type Address string

// ZeroAddress is the conventional null identity. Transferring control to it
// permanently disables privileged operations; that is the caller's call to
// make, the custodian does not prevent it.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// IsZero reports whether the address is empty or the null identity.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// MaxAllowance is the maximum representable token allowance (2^256 - 1),
// granted once to the money market at custodian construction and never
// revoked.
var MaxAllowance = sdkmath.NewIntFromBigInt(
	new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
)
