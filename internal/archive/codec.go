package archive

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/Klingon-tech/powledger/pkg/block"
	"github.com/Klingon-tech/powledger/pkg/tx"
)

// Codec CBOR-encodes values and compresses them with Zstandard.
type Codec struct {
	encoder      cbor.EncMode
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewCodec creates a codec using canonical CBOR.
func NewCodec() (*Codec, error) {
	encoder, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("could not initialize encoder: %w", err)
	}
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("could not initialize compressor: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize decompressor: %w", err)
	}
	return &Codec{
		encoder:      encoder,
		compressor:   compressor,
		decompressor: decompressor,
	}, nil
}

// Marshal encodes and compresses v.
func (c *Codec) Marshal(v interface{}) ([]byte, error) {
	b, err := c.encoder.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unable to encode value: %w", err)
	}
	return c.compressor.EncodeAll(b, nil), nil
}

// Unmarshal decompresses and decodes b into v.
func (c *Codec) Unmarshal(b []byte, v interface{}) error {
	val, err := c.decompressor.DecodeAll(b, nil)
	if err != nil {
		return fmt.Errorf("unable to decompress value: %w", err)
	}
	if err := cbor.Unmarshal(val, v); err != nil {
		return fmt.Errorf("unable to decode value: %w", err)
	}
	return nil
}

// blockRecord is the stored form of a sealed block.
type blockRecord struct {
	Index        uint64     `cbor:"1,keyasint"`
	Timestamp    int64      `cbor:"2,keyasint"`
	Transactions []txRecord `cbor:"3,keyasint"`
	Hash         string     `cbor:"4,keyasint"`
	PreviousHash string     `cbor:"5,keyasint"`
	Nonce        uint64     `cbor:"6,keyasint"`
	Miner        string     `cbor:"7,keyasint"`
}

type txRecord struct {
	Sender    string  `cbor:"1,keyasint"`
	Recipient string  `cbor:"2,keyasint"`
	Amount    float64 `cbor:"3,keyasint"`
}

func toRecord(b *block.Block) blockRecord {
	txs := make([]txRecord, len(b.Transactions))
	for i, t := range b.Transactions {
		txs[i] = txRecord{Sender: t.Sender, Recipient: t.Recipient, Amount: t.Amount}
	}
	return blockRecord{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: txs,
		Hash:         b.Hash,
		PreviousHash: b.PreviousHash,
		Nonce:        b.Nonce,
		Miner:        b.Miner,
	}
}

func (r blockRecord) block() *block.Block {
	txs := make([]*tx.Transaction, len(r.Transactions))
	for i, t := range r.Transactions {
		txs[i] = &tx.Transaction{Sender: t.Sender, Recipient: t.Recipient, Amount: t.Amount}
	}
	return &block.Block{
		Index:        r.Index,
		Timestamp:    r.Timestamp,
		Transactions: txs,
		Hash:         r.Hash,
		PreviousHash: r.PreviousHash,
		Nonce:        r.Nonce,
		Miner:        r.Miner,
	}
}

// EncodeBlock returns the stored bytes for b.
func (c *Codec) EncodeBlock(b *block.Block) ([]byte, error) {
	return c.Marshal(toRecord(b))
}

// DecodeBlock restores a block written by EncodeBlock.
func (c *Codec) DecodeBlock(data []byte) (*block.Block, error) {
	var r blockRecord
	if err := c.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r.block(), nil
}
