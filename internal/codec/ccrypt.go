package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// cryptStage is the encryption stage of the codec stack:
// AES-CBC keyed from the job password and a 16-byte salt via
// golang.org/x/crypto/pbkdf2, matching the salt/crypt-mode knobs the
// job's crypt options expose. The derived key is zeroized once the
// block cipher is constructed so the cleartext key does not linger in
// process memory longer than necessary.
type cryptStage struct {
	encode bool
	block  cipher.Block
	salt   [16]byte
	in     bytes.Buffer
	out    bytes.Buffer
}

const pbkdf2Iterations = 100_000

// NewCryptStage derives an AES-256 key from password and salt (pass a
// freshly-generated salt when encoding; pass the salt read back from
// the archive header when decoding) and returns a Stream operating in
// CBC mode.
func NewCryptStage(password []byte, salt [16]byte, encode bool) (Stream, error) {
	key := pbkdf2.Key(password, salt[:], pbkdf2Iterations, 32, sha3.New256)
	defer zeroize(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ccrypt: %w", err)
	}
	return &cryptStage{encode: encode, block: block, salt: salt}, nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// GenerateSalt returns a fresh random 16-byte salt for a new encode-side
// crypt stage.
func GenerateSalt() ([16]byte, error) {
	var salt [16]byte
	_, err := rand.Read(salt[:])
	return salt, err
}

func (s *cryptStage) Feed(p []byte) (int, error) {
	return s.in.Write(p)
}

func (s *cryptStage) Flush() error {
	data := s.in.Bytes()
	if s.encode {
		padded := pkcs7Pad(data, aes.BlockSize)
		iv := make([]byte, aes.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return err
		}
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(s.block, iv).CryptBlocks(out, padded)
		s.out.Write(iv)
		s.out.Write(out)
	} else {
		if len(data) < aes.BlockSize {
			return fmt.Errorf("ccrypt: ciphertext too short")
		}
		iv := data[:aes.BlockSize]
		ct := data[aes.BlockSize:]
		if len(ct)%aes.BlockSize != 0 {
			return fmt.Errorf("ccrypt: ciphertext not block-aligned")
		}
		out := make([]byte, len(ct))
		cipher.NewCBCDecrypter(s.block, iv).CryptBlocks(out, ct)
		unpadded, err := pkcs7Unpad(out)
		if err != nil {
			return err
		}
		s.out.Write(unpadded)
	}
	s.in.Reset()
	return nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("ccrypt: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("ccrypt: invalid padding")
	}
	return data[:len(data)-padLen], nil
}

func (s *cryptStage) Drain() ([]byte, bool) {
	if s.out.Len() == 0 {
		return nil, false
	}
	b := append([]byte(nil), s.out.Bytes()...)
	s.out.Reset()
	return b, true
}

func (s *cryptStage) Reset() {
	s.in.Reset()
	s.out.Reset()
}

func (s *cryptStage) InputBytes() uint64  { return uint64(s.in.Len()) }
func (s *cryptStage) OutputBytes() uint64 { return uint64(s.out.Len()) }
