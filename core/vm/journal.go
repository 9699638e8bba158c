package vm

// journal.go implements the touched-state journal: a layered map of
// account/storage deltas over a read-through, immutable base world. The
// "layer" abstraction from the design notes is realized the way the
// teacher's access_list_tracker.go already realizes it for warm/cold
// tracking -- an append-only undo log plus a stack of snapshot offsets --
// generalized here to cover full account and storage state, not just
// warm/cold bits. The selfdestruct set uses golang-set/v2, a direct pack
// dependency, for its union/contains-shaped per-transaction membership.

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/batchvm/batchvm/core/types"
)

// AccountStatus is the lifecycle tag carried per account record.
type AccountStatus uint8

const (
	StatusUntouched AccountStatus = iota
	StatusRead
	StatusWritten
	StatusCreated
	StatusDestroyed
)

func (s AccountStatus) String() string {
	switch s {
	case StatusUntouched:
		return "untouched"
	case StatusRead:
		return "read"
	case StatusWritten:
		return "written"
	case StatusCreated:
		return "created"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// BaseWorld is the read-only, per-batch-shared view of account state
// before the transaction. It may be shared read-only across instances;
// see the concurrency and resource model.
type BaseWorld interface {
	Account(addr types.Address) (nonce uint64, balance Word, code []byte, exists bool)
	Storage(addr types.Address, key Word) Word
}

// EmptyBaseWorld is a BaseWorld with no pre-existing accounts, useful for
// tests and for CREATE-only fixtures.
type EmptyBaseWorld struct{}

func (EmptyBaseWorld) Account(types.Address) (uint64, Word, []byte, bool) {
	return 0, Word{}, nil, false
}

func (EmptyBaseWorld) Storage(types.Address, Word) Word { return Word{} }

// Account is the journal's materialized view of one account: identity,
// mutable fields, and its per-slot storage overlay.
type Account struct {
	Address types.Address
	Nonce   uint64
	Balance Word
	Code    []byte
	Storage map[Word]*slotEntry
	Warm    bool
	Status  AccountStatus
}

// slotEntry carries the EIP-2200 tri-value tracking for one storage slot:
// original (value at the start of the transaction), current (latest
// committed value in this journal), warm (EIP-2929).
type slotEntry struct {
	Original Word
	Current  Word
	Warm     bool
}

type storageKey struct {
	addr types.Address
	slot Word
}

type changeKind uint8

const (
	chCreateAccount changeKind = iota
	chBalance
	chNonce
	chCode
	chStorage
	chWarmAddr
	chWarmSlot
	chStatus
	chRefund
	chTransient
	chDestruct
)

// change is one undoable mutation, recorded on the journal's append-only
// log so that Revert can walk it backwards.
type change struct {
	kind            changeKind
	addr            types.Address
	slot            Word
	existed         bool // account existed in j.accounts before this change
	prevWord        Word
	prevBytes       []byte
	prevStatus      AccountStatus
	prevWarm        bool
	prevRefund      int64
	prevBeneficiary types.Address
}

// Journal is the per-instance touched-state journal. Not safe for
// concurrent use; each instance owns its own Journal.
type Journal struct {
	base     BaseWorld
	accounts map[types.Address]*Account

	log   []change
	snaps []int

	refund int64

	destructed  mapset.Set[types.Address]
	beneficiary map[types.Address]types.Address

	transient map[storageKey]Word
}

// NewJournal creates an empty Journal layered over base.
func NewJournal(base BaseWorld) *Journal {
	if base == nil {
		base = EmptyBaseWorld{}
	}
	return &Journal{
		base:        base,
		accounts:    make(map[types.Address]*Account),
		destructed:  mapset.NewThreadUnsafeSet[types.Address](),
		beneficiary: make(map[types.Address]types.Address),
		transient:   make(map[storageKey]Word),
	}
}

// ReadTransient returns the current value of addr's transient slot key, per
// EIP-1153. Transient storage is never warm/cold metered and reads as zero
// until written. Unlike persistent storage it is never read through to the
// base world: it exists only for the lifetime of this journal.
func (j *Journal) ReadTransient(addr types.Address, key Word) Word {
	return j.transient[storageKey{addr: addr, slot: key}]
}

// WriteTransient sets addr's transient slot key to value. The write
// unwinds on Revert exactly like persistent storage, but never survives
// past the instance that created this journal: there is no Settle-time
// persistence and no original/current tracking for gas purposes.
func (j *Journal) WriteTransient(addr types.Address, key, value Word) {
	sk := storageKey{addr: addr, slot: key}
	prev, existed := j.transient[sk]
	j.record(change{kind: chTransient, addr: addr, slot: key, existed: existed, prevWord: prev})
	j.transient[sk] = value
}

// materialize returns the Account record for addr, creating a read-through
// entry from the base world on first touch.
func (j *Journal) materialize(addr types.Address) *Account {
	if acc, ok := j.accounts[addr]; ok {
		return acc
	}
	nonce, balance, code, exists := j.base.Account(addr)
	acc := &Account{
		Address: addr,
		Nonce:   nonce,
		Balance: balance,
		Code:    code,
		Storage: make(map[Word]*slotEntry),
		Status:  StatusUntouched,
	}
	if !exists {
		acc.Status = StatusUntouched
	}
	j.accounts[addr] = acc
	j.record(change{kind: chCreateAccount, addr: addr, existed: false})
	return acc
}

func (j *Journal) record(c change) {
	j.log = append(j.log, c)
}

func (j *Journal) setStatus(acc *Account, status AccountStatus) {
	if acc.Status == status {
		return
	}
	j.record(change{kind: chStatus, addr: acc.Address, prevStatus: acc.Status})
	acc.Status = status
}

// TouchAddress warms addr if cold, per EIP-2929. Returns whether it was
// already warm.
func (j *Journal) TouchAddress(addr types.Address) bool {
	acc := j.materialize(addr)
	if acc.Warm {
		return true
	}
	j.record(change{kind: chWarmAddr, addr: addr, prevWarm: false})
	acc.Warm = true
	return false
}

// TouchSlot warms the (addr, key) slot if cold. Returns (addressWasWarm,
// slotWasWarm) reflecting state before this call.
func (j *Journal) TouchSlot(addr types.Address, key Word) (addrWarm, slotWarm bool) {
	addrWarm = j.TouchAddress(addr)
	acc := j.accounts[addr]
	se, ok := acc.Storage[key]
	if !ok {
		se = &slotEntry{Original: j.base.Storage(addr, key)}
		acc.Storage[key] = se
		j.record(change{kind: chStorage, addr: addr, slot: key, existed: false})
	}
	if se.Warm {
		return addrWarm, true
	}
	j.record(change{kind: chWarmSlot, addr: addr, slot: key, prevWarm: false})
	se.Warm = true
	return addrWarm, false
}

// ReadStorage returns the slot's current value, warming it. Absent slots
// read as zero.
func (j *Journal) ReadStorage(addr types.Address, key Word) Word {
	j.TouchSlot(addr, key)
	acc := j.materialize(addr)
	j.setStatus(acc, maxStatus(acc.Status, StatusRead))
	return acc.Storage[key].Current
}

// WriteStorage sets the slot to value, returning the (original, current)
// pair observed just before this write -- the inputs the opcode layer
// needs for EIP-2200 gas/refund computation. original is fixed at the
// slot's first touch in this journal (i.e. transaction start) and is
// never reverted, per EIP-2200.
func (j *Journal) WriteStorage(addr types.Address, key, value Word) (original, current Word) {
	j.TouchSlot(addr, key)
	acc := j.materialize(addr)
	se := acc.Storage[key]
	original, current = se.Original, se.Current

	j.record(change{kind: chStorage, addr: addr, slot: key, existed: true, prevWord: se.Current})
	se.Current = value
	j.setStatus(acc, StatusWritten)
	return original, current
}

func maxStatus(a, b AccountStatus) AccountStatus {
	if b > a {
		return b
	}
	return a
}

// GetBalance returns addr's current balance.
func (j *Journal) GetBalance(addr types.Address) Word {
	return j.materialize(addr).Balance
}

// SetBalance sets addr's balance.
func (j *Journal) SetBalance(addr types.Address, value Word) {
	acc := j.materialize(addr)
	j.record(change{kind: chBalance, addr: addr, prevWord: acc.Balance})
	acc.Balance = value
	j.setStatus(acc, StatusWritten)
}

// AddBalance credits addr's balance by delta (wrapping per Word semantics).
func (j *Journal) AddBalance(addr types.Address, delta Word) {
	acc := j.materialize(addr)
	var sum Word
	sum.Add(&acc.Balance, &delta)
	j.SetBalance(addr, sum)
}

// SubBalance debits addr's balance by delta. Returns ErrInsufficientBalance
// if delta exceeds the current balance.
func (j *Journal) SubBalance(addr types.Address, delta Word) error {
	acc := j.materialize(addr)
	if acc.Balance.Lt(&delta) {
		return ErrInsufficientBalance
	}
	var diff Word
	diff.Sub(&acc.Balance, &delta)
	j.SetBalance(addr, diff)
	return nil
}

// GetNonce returns addr's current nonce.
func (j *Journal) GetNonce(addr types.Address) uint64 {
	return j.materialize(addr).Nonce
}

// SetNonce sets addr's nonce.
func (j *Journal) SetNonce(addr types.Address, n uint64) {
	acc := j.materialize(addr)
	j.record(change{kind: chNonce, addr: addr, prevWord: NewWord(acc.Nonce)})
	acc.Nonce = n
	j.setStatus(acc, StatusWritten)
}

// GetCode returns addr's code.
func (j *Journal) GetCode(addr types.Address) []byte {
	return j.materialize(addr).Code
}

// SetCode installs code for addr (CREATE/CREATE2 completion).
func (j *Journal) SetCode(addr types.Address, code []byte) {
	acc := j.materialize(addr)
	j.record(change{kind: chCode, addr: addr, prevBytes: acc.Code})
	acc.Code = code
	j.setStatus(acc, StatusCreated)
}

// Exists reports whether addr has been observed to exist, either in the
// base world or by virtue of a CREATE in this journal.
func (j *Journal) Exists(addr types.Address) bool {
	acc := j.materialize(addr)
	if acc.Status == StatusCreated {
		return true
	}
	_, _, _, exists := j.base.Account(addr)
	return exists || acc.Nonce != 0 || !acc.Balance.IsZero() || len(acc.Code) != 0
}

// Status returns addr's current lifecycle tag.
func (j *Journal) Status(addr types.Address) AccountStatus {
	return j.materialize(addr).Status
}

// Selfdestruct marks addr destroyed, crediting its balance to beneficiary
// at end-of-transaction settlement. Reads of addr remain valid until
// Settle is called. The membership/beneficiary mutation is itself
// journaled so a later Revert (e.g. an ancestor frame faulting after a
// nested call already selfdestructed and committed) unwinds it like any
// other account change.
func (j *Journal) Selfdestruct(addr, beneficiary types.Address) {
	acc := j.materialize(addr)
	j.setStatus(acc, StatusDestroyed)
	wasDestructed := j.destructed.Contains(addr)
	prevBeneficiary := j.beneficiary[addr]
	j.record(change{kind: chDestruct, addr: addr, existed: wasDestructed, prevBeneficiary: prevBeneficiary})
	j.destructed.Add(addr)
	j.beneficiary[addr] = beneficiary
}

// Destructed reports whether addr is in the per-transaction selfdestruct
// set.
func (j *Journal) Destructed(addr types.Address) bool {
	return j.destructed.Contains(addr)
}

// Settle credits every selfdestructed account's balance to its
// beneficiary and empties the source account. Called once by the driver
// after the top-level frame returns; multiple destructs of the same
// address collapse to one set membership, so ordering among them is
// unobservable, per the design notes.
func (j *Journal) Settle() {
	for _, addr := range j.destructed.ToSlice() {
		acc := j.accounts[addr]
		if acc == nil {
			continue
		}
		ben := j.beneficiary[addr]
		if ben != addr {
			j.AddBalance(ben, acc.Balance)
		}
		j.SetBalance(addr, Word{})
	}
}

// AddRefund adds delta (which may be negative) to the transaction-wide
// EIP-3529 gas refund counter. Reverted by Revert like any other change.
func (j *Journal) AddRefund(delta int64) {
	j.record(change{kind: chRefund, prevRefund: j.refund})
	j.refund += delta
}

// Refund returns the current, unclamped refund accumulator. The caller
// applies the EIP-3529 gasUsed/MaxRefundQuotient cap at settlement time.
func (j *Journal) Refund() int64 {
	return j.refund
}

// Snapshot returns an opaque handle that Revert can later restore to.
func (j *Journal) Snapshot() int {
	id := len(j.snaps)
	j.snaps = append(j.snaps, len(j.log))
	return id
}

// Revert restores all account and storage state (including warm/cold
// bits) to the point snapshot(h) was taken, per the EIP-2929 revert-
// restores-warmth decision recorded in the design notes.
func (j *Journal) Revert(handle int) {
	if handle < 0 || handle >= len(j.snaps) {
		panic("vm: journal revert to invalid snapshot handle")
	}
	target := j.snaps[handle]
	for i := len(j.log) - 1; i >= target; i-- {
		c := j.log[i]
		switch c.kind {
		case chCreateAccount:
			if !c.existed {
				delete(j.accounts, c.addr)
			}
		case chBalance:
			j.accounts[c.addr].Balance = c.prevWord
		case chNonce:
			j.accounts[c.addr].Nonce = c.prevWord.Uint64()
		case chCode:
			j.accounts[c.addr].Code = c.prevBytes
		case chStorage:
			acc := j.accounts[c.addr]
			if acc == nil {
				continue
			}
			if !c.existed {
				delete(acc.Storage, c.slot)
			} else if se, ok := acc.Storage[c.slot]; ok {
				se.Current = c.prevWord
			}
		case chWarmAddr:
			j.accounts[c.addr].Warm = c.prevWarm
		case chWarmSlot:
			if acc := j.accounts[c.addr]; acc != nil {
				if se, ok := acc.Storage[c.slot]; ok {
					se.Warm = c.prevWarm
				}
			}
		case chStatus:
			j.accounts[c.addr].Status = c.prevStatus
		case chRefund:
			j.refund = c.prevRefund
		case chTransient:
			sk := storageKey{addr: c.addr, slot: c.slot}
			if !c.existed {
				delete(j.transient, sk)
			} else {
				j.transient[sk] = c.prevWord
			}
		case chDestruct:
			if !c.existed {
				j.destructed.Remove(c.addr)
				delete(j.beneficiary, c.addr)
			} else {
				j.beneficiary[c.addr] = c.prevBeneficiary
			}
		}
	}
	j.log = j.log[:target]
	j.snaps = j.snaps[:handle]
}

// TouchedAccountSnapshot is a deep, by-value capture of one account's
// observable state at a single retirement boundary -- the per-account
// element of a trace entry's touched-state snapshot.
type TouchedAccountSnapshot struct {
	Address types.Address
	Nonce   uint64
	Balance Word
	Code    []byte
	Storage map[Word]Word
	Warm    bool
	Status  AccountStatus
}

// TouchedSnapshot returns a freshly allocated, deep-copied snapshot of
// every account materialized so far in this journal. Used by the tracer
// to populate a trace entry's touched-state field; later mutation of the
// journal must never be visible through a previously returned snapshot.
func (j *Journal) TouchedSnapshot() []TouchedAccountSnapshot {
	out := make([]TouchedAccountSnapshot, 0, len(j.accounts))
	for _, acc := range j.accounts {
		if acc.Status == StatusUntouched {
			continue
		}
		storage := make(map[Word]Word, len(acc.Storage))
		for k, se := range acc.Storage {
			storage[k] = se.Current
		}
		code := make([]byte, len(acc.Code))
		copy(code, acc.Code)
		out = append(out, TouchedAccountSnapshot{
			Address: acc.Address,
			Nonce:   acc.Nonce,
			Balance: acc.Balance,
			Code:    code,
			Storage: storage,
			Warm:    acc.Warm,
			Status:  acc.Status,
		})
	}
	return out
}

// Commit discards rollback information for the given snapshot: the
// journal keeps its current state but forgets how to revert back past
// this point. Commit must be called in LIFO order matching Snapshot.
func (j *Journal) Commit(handle int) {
	if handle < 0 || handle >= len(j.snaps) {
		panic("vm: journal commit of invalid snapshot handle")
	}
	j.snaps = j.snaps[:handle]
}
