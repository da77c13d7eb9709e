package types

import "encoding/binary"

// Cryptographic key and signature widths carried on chain.
const (
	Ed25519PublicLength      = 32
	Ed25519SignatureLength   = 64
	BandersnatchPublicLength = 32
	BandersnatchSignatureLength = 96
	RingVRFSignatureLength   = 784
	RingCommitmentLength     = 144
	BLSPublicLength          = 144
	ValidatorMetadataLength  = 128

	// ValidatorRecordLength is the concatenation of bandersnatch (32) +
	// ed25519 (32) + bls (144) + metadata (128) = 336 bytes.
	ValidatorRecordLength = BandersnatchPublicLength + Ed25519PublicLength + BLSPublicLength + ValidatorMetadataLength
)

// Ed25519Public is a validator's Ed25519 public key.
type Ed25519Public [Ed25519PublicLength]byte

// BytesToEd25519Public right-aligns b into an Ed25519Public key, truncating
// from the left if b is longer than Ed25519PublicLength.
func BytesToEd25519Public(b []byte) Ed25519Public {
	var k Ed25519Public
	if len(b) > Ed25519PublicLength {
		b = b[len(b)-Ed25519PublicLength:]
	}
	copy(k[Ed25519PublicLength-len(b):], b)
	return k
}

// Ed25519Signature is an Ed25519 signature.
type Ed25519Signature [Ed25519SignatureLength]byte

// BandersnatchPublic is a validator's Bandersnatch public key.
type BandersnatchPublic [BandersnatchPublicLength]byte

// BandersnatchSignature is a single-key (IETF) Bandersnatch VRF signature,
// the kind carried twice by every block header (seal and entropy source).
type BandersnatchSignature [BandersnatchSignatureLength]byte

// RingVRFSignature is a Bandersnatch ring-VRF signature.
type RingVRFSignature [RingVRFSignatureLength]byte

// RingCommitment commits to the ring of validator Bandersnatch keys for an
// epoch (the "epoch root").
type RingCommitment [RingCommitmentLength]byte

// BLSPublic is a validator's BLS public key. Carried in validator metadata
// per the Graypaper; the CORE never verifies a BLS signature itself.
type BLSPublic [BLSPublicLength]byte

// ValidatorMetadata is an opaque 128-byte blob (e.g. network address) that
// accompanies each validator record.
type ValidatorMetadata [ValidatorMetadataLength]byte

// ValidatorRecord is the concatenation of a validator's keys and metadata,
// as stored in ValidatorsData snapshots (λ, κ, ι, γ_k).
type ValidatorRecord struct {
	Bandersnatch BandersnatchPublic
	Ed25519      Ed25519Public
	BLS          BLSPublic
	Metadata     ValidatorMetadata
}

// IsZero reports whether every field of the record is zero, which marks a
// validator as an offender whose keys have been wiped at the epoch transition.
func (v ValidatorRecord) IsZero() bool {
	var zero ValidatorRecord
	return v == zero
}

// Zeroed returns a copy of v with every key/metadata field set to zero,
// matching the "offenders zeroed out" step of the Safrole epoch transition.
func (v ValidatorRecord) Zeroed() ValidatorRecord {
	return ValidatorRecord{}
}

// Encode serializes the record as its canonical 336-byte concatenation.
func (v ValidatorRecord) Encode() []byte {
	buf := make([]byte, 0, ValidatorRecordLength)
	buf = append(buf, v.Bandersnatch[:]...)
	buf = append(buf, v.Ed25519[:]...)
	buf = append(buf, v.BLS[:]...)
	buf = append(buf, v.Metadata[:]...)
	return buf
}

// DecodeValidatorRecord parses a canonical 336-byte validator record.
func DecodeValidatorRecord(b []byte) (ValidatorRecord, error) {
	if len(b) != ValidatorRecordLength {
		return ValidatorRecord{}, ErrShortRead
	}
	var v ValidatorRecord
	copy(v.Bandersnatch[:], b[0:32])
	copy(v.Ed25519[:], b[32:64])
	copy(v.BLS[:], b[64:208])
	copy(v.Metadata[:], b[208:336])
	return v, nil
}

// ServiceId identifies a service account.
type ServiceId uint32

// Encode serializes a ServiceId as a little-endian uint32.
func (s ServiceId) Encode() []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(s))
	return buf[:]
}

// Gas is a signed 64-bit gas counter (PVM gas can go negative on overspend
// before the instruction that caused OutOfGas is rejected).
type Gas int64
