package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// fixtureValidator is one genesis validator record in the fixture file.
type fixtureValidator struct {
	Bandersnatch string `json:"bandersnatch"`
	Ed25519      string `json:"ed25519"`
}

// fixtureFile is the on-disk JSON shape: genesis validators plus the
// hex-encoded canonical block sequence to import.
type fixtureFile struct {
	Validators []fixtureValidator `json:"validators"`
	Blocks     []string           `json:"blocks"`
}

// fixture is the parsed, decoded fixture ready to run.
type fixture struct {
	Validators []types.ValidatorRecord
	Blocks     []block.Block
}

// loadFixture reads and decodes a fixture file.
func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ff fixtureFile
	if err := json.Unmarshal(raw, &ff); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	fx := &fixture{}
	for i, v := range ff.Validators {
		var rec types.ValidatorRecord
		b, err := decodeHex(v.Bandersnatch)
		if err != nil {
			return nil, fmt.Errorf("validator %d bandersnatch: %w", i, err)
		}
		copy(rec.Bandersnatch[:], b)
		if b, err = decodeHex(v.Ed25519); err != nil {
			return nil, fmt.Errorf("validator %d ed25519: %w", i, err)
		}
		copy(rec.Ed25519[:], b)
		fx.Validators = append(fx.Validators, rec)
	}

	for i, s := range ff.Blocks {
		raw, err := decodeHex(s)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		b, err := block.DecodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		fx.Blocks = append(fx.Blocks, b)
	}
	return fx, nil
}

// GenesisState builds the genesis-shaped state the fixture's blocks apply
// against: defaults everywhere, with ι (and the snapshots derived from it)
// populated from the fixture's validators.
func (fx *fixture) GenesisState() state.State {
	s := state.New(types.ValidatorsCount, types.CoresCount, types.EpochLength, types.RecentHistorySize)
	for i, rec := range fx.Validators {
		if i >= types.ValidatorsCount {
			break
		}
		s.Validators.Next[i] = rec
		s.Validators.Current[i] = rec
		s.Safrole.Pending[i] = rec
	}
	s.Safrole.Seal.Keys = fallbackKeys(s.Validators.Current)
	return s
}

// fallbackKeys fills an epoch-length key schedule by cycling the validator
// set in index order, the shape a genesis state seals its first epoch with.
func fallbackKeys(vs state.ValidatorSet) []types.BandersnatchPublic {
	out := make([]types.BandersnatchPublic, types.EpochLength)
	for i := range out {
		out[i] = vs[i%len(vs)].Bandersnatch
	}
	return out
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
