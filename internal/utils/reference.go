package utils

import (
	"crypto/rand" // Entropy source
	"strconv"     // Id formatting
	"sync"        // Guards the monotonic entropy
	"time"        // ULID timestamp

	"github.com/oklog/ulid/v2" // Sortable unique ids
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newULID returns a monotonic ULID string
func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// PaymentReference builds a gateway reference for an inspection payment
func PaymentReference(inspectionID uint) string {
	return "INSP-" + strconv.FormatUint(uint64(inspectionID), 10) + "-" + newULID()
}

// PayoutReference builds a reference for a manual withdrawal payout
func PayoutReference(requestID uint) string {
	return "WDR-" + strconv.FormatUint(uint64(requestID), 10) + "-" + newULID()
}

// WalletPaymentReference keys a wallet-funded inspection payment
func WalletPaymentReference(inspectionID uint) string {
	return "WALLET-" + strconv.FormatUint(uint64(inspectionID), 10) + "-" + newULID()
}
