package main

// Stub implementations of the three external contracts spec §1 calls out as
// collaborators the core only ever reaches through an interface: the fee
// oracle/membership registry, the revenue accountant/treasury, and the
// asset-transfer capability. None of this is core-engine logic — it exists
// only so cmd/safexd has something concrete to wire the engine to and run
// against. A real deployment replaces every type in this file with a client
// for the actual registry/treasury/ledger services; nothing in
// internal/engine depends on these being anything but interfaces.

import (
	"errors"
	"math/big"
	"sync"

	"github.com/rs/zerolog"

	"safex/internal/common"
)

var errInsufficientBalance = errors.New("safexd: insufficient ledger balance")

// memoryLedger is an in-process fungible-balance table. It satisfies both
// common.AssetTransfer and common.Decimals so a single value can stand in
// for "the rest of the chain" in a demo run.
type memoryLedger struct {
	mu       sync.Mutex
	balances map[common.Token]map[common.Address]*big.Int
	decimals map[common.Token]uint8
}

func newMemoryLedger(decimals map[common.Token]uint8) *memoryLedger {
	return &memoryLedger{
		balances: make(map[common.Token]map[common.Address]*big.Int),
		decimals: decimals,
	}
}

// Credit mints amount of token into account, for seeding demo balances.
func (l *memoryLedger) Credit(token common.Token, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(token, account, amount)
}

func (l *memoryLedger) add(token common.Token, account common.Address, amount *big.Int) {
	accts, ok := l.balances[token]
	if !ok {
		accts = make(map[common.Address]*big.Int)
		l.balances[token] = accts
	}
	bal, ok := accts[account]
	if !ok {
		bal = new(big.Int)
		accts[account] = bal
	}
	bal.Add(bal, amount)
}

// Transfer moves amount of token out of the zero address's book-entry into
// to — used by the engine for outbound settlement where no specific payer
// is named (fee payouts, execution proceeds, refunds).
func (l *memoryLedger) Transfer(token common.Token, to common.Address, amount *big.Int) error {
	return l.TransferFrom(token, common.ZeroAddress, to, amount)
}

// TransferFrom debits from and credits to, failing if from doesn't hold
// enough. from == common.ZeroAddress is treated as an unlimited source (the
// engine's own custody account nets to zero across a balanced run; this
// stub doesn't enforce that invariant since it isn't a core-engine concern).
func (l *memoryLedger) TransferFrom(token common.Token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if from != common.ZeroAddress {
		accts := l.balances[token]
		bal, ok := accts[from]
		if !ok || bal.Cmp(amount) < 0 {
			return errInsufficientBalance
		}
		bal.Sub(bal, amount)
	}
	l.add(token, to, amount)
	return nil
}

func (l *memoryLedger) DecimalsOf(token common.Token) (uint8, error) {
	if d, ok := l.decimals[token]; ok {
		return d, nil
	}
	return 18, nil
}

// staticFeeOracle assigns every uid the same maker/taker numerators. A real
// membership registry would look these up per actor's tier; this is enough
// to exercise the oracle branch of _deposit in a demo run.
type staticFeeOracle struct {
	makerNumerator, takerNumerator uint32
	reportable                     map[uint64]bool
}

func (o staticFeeOracle) IsReportable(sender common.Address, uid uint64) bool {
	if o.reportable == nil {
		return uid != 0
	}
	return o.reportable[uid]
}

func (o staticFeeOracle) FeeOf(uid uint64, isMaker bool) uint32 {
	if isMaker {
		return o.makerNumerator
	}
	return o.takerNumerator
}

// logReporter forwards fee/cancel reports to the structured logger instead
// of an on-chain accountant, and settles refunds through the ledger it
// wraps.
type logReporter struct {
	log    zerolog.Logger
	ledger *memoryLedger
}

func (r *logReporter) Report(uid uint64, token common.Token, amount *big.Int, add bool) {
	r.log.Info().
		Uint64("uid", uid).
		Str("token", string(token)).
		Str("amount", amount.String()).
		Bool("add", add).
		Msg("fee report")
}

func (r *logReporter) RefundFee(to common.Address, token common.Token, amount *big.Int) {
	if err := r.ledger.Transfer(token, to, amount); err != nil {
		r.log.Error().Err(err).Str("token", string(token)).Msg("fee refund failed")
		return
	}
	r.log.Info().Str("to", to.String()).Str("token", string(token)).Str("amount", amount.String()).Msg("fee refunded")
}
