package consensus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

func testBlock(t *testing.T) *block.Block {
	t.Helper()
	blk, err := block.New(1, time.UnixMilli(1000), []*tx.Transaction{tx.Reward("alice", 1)}, "00ff", "alice")
	if err != nil {
		t.Fatalf("block.New: %v", err)
	}
	return blk
}

func TestNewPoW_Range(t *testing.T) {
	tests := []struct {
		difficulty int
		wantErr    bool
	}{
		{-1, true},
		{0, false},
		{1, false},
		{MaxDifficulty, false},
		{MaxDifficulty + 1, true},
	}
	for _, tt := range tests {
		_, err := NewPoW(tt.difficulty)
		if tt.wantErr && !errors.Is(err, ErrBadDifficulty) {
			t.Errorf("NewPoW(%d) err = %v, want ErrBadDifficulty", tt.difficulty, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("NewPoW(%d) unexpected error: %v", tt.difficulty, err)
		}
	}
}

func TestMeetsTarget(t *testing.T) {
	tests := []struct {
		hash       string
		difficulty int
		want       bool
	}{
		{"abc", 0, true},
		{"0abc", 1, true},
		{"0abc", 2, false},
		{"00abc", 2, true},
		{"a0", 1, false},
		{"0", 2, false},
		{"", 0, true},
	}
	for _, tt := range tests {
		if got := MeetsTarget(tt.hash, tt.difficulty); got != tt.want {
			t.Errorf("MeetsTarget(%q, %d) = %v, want %v", tt.hash, tt.difficulty, got, tt.want)
		}
	}
}

func TestPoW_SealAndVerify(t *testing.T) {
	pow, err := NewPoW(2)
	if err != nil {
		t.Fatal(err)
	}

	blk := testBlock(t)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(blk.Hash, "00") {
		t.Fatalf("sealed hash %s lacks target prefix", blk.Hash)
	}
	if blk.Hash != blk.ComputeHash() {
		t.Fatal("sealed hash does not match ComputeHash")
	}
	if err := pow.Verify(blk); err != nil {
		t.Fatalf("Verify after Seal: %v", err)
	}
}

func TestPoW_SealFindsSmallestNonce(t *testing.T) {
	pow, _ := NewPoW(1)
	blk := testBlock(t)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	for n := uint64(0); n < blk.Nonce; n++ {
		if pow.MeetsTarget(blk.HashWithNonce(n)) {
			t.Fatalf("nonce %d also meets target but Seal returned %d", n, blk.Nonce)
		}
	}
}

func TestPoW_ZeroDifficultyAcceptsNonceZero(t *testing.T) {
	pow, _ := NewPoW(0)
	blk := testBlock(t)
	if err := pow.Seal(blk); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if blk.Nonce != 0 {
		t.Errorf("nonce = %d, want 0 at difficulty 0", blk.Nonce)
	}
	if err := pow.Verify(blk); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestPoW_VerifyRejects(t *testing.T) {
	pow, _ := NewPoW(MaxDifficulty)
	blk := testBlock(t)
	blk.Nonce = 42
	if err := pow.Verify(blk); !errors.Is(err, ErrInsufficientWork) {
		t.Fatalf("Verify at max difficulty = %v, want ErrInsufficientWork", err)
	}
}

func TestPoW_VerifyHashMismatch(t *testing.T) {
	pow, _ := NewPoW(1)
	blk := testBlock(t)
	if err := pow.Seal(blk); err != nil {
		t.Fatal(err)
	}
	blk.Transactions = append(blk.Transactions, &tx.Transaction{Sender: "x", Recipient: "y", Amount: 1})
	if err := pow.Verify(blk); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("Verify after tamper = %v, want ErrHashMismatch", err)
	}
}

func TestPoW_SearchParallel(t *testing.T) {
	pow, _ := NewPoW(3)
	pow.Threads = 4
	preimage := testBlock(t).Preimage()

	nonce, hash, err := pow.Search(context.Background(), preimage, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.HasPrefix(hash, "000") {
		t.Fatalf("hash %s lacks target prefix", hash)
	}
	if block.HashPreimage(preimage, nonce) != hash {
		t.Fatal("returned hash does not match nonce")
	}
}

func TestPoW_SearchStart(t *testing.T) {
	pow, _ := NewPoW(0)
	nonce, _, err := pow.Search(context.Background(), "x", 500)
	if err != nil {
		t.Fatal(err)
	}
	if nonce != 500 {
		t.Errorf("nonce = %d, want 500", nonce)
	}
}

func TestPoW_SearchCancel(t *testing.T) {
	for _, threads := range []int{1, 4} {
		pow, _ := NewPoW(MaxDifficulty)
		pow.Threads = threads
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, _, err := pow.Search(ctx, "unreachable", 0)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("threads=%d: Search err = %v, want DeadlineExceeded", threads, err)
		}
	}
}
