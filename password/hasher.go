package password

// Scheme is one hashing algorithm.
type Scheme interface {
	Hash(password string) (string, error)
	Verify(password string, encodedHash string) (bool, error)
	Recognizes(encodedHash string) bool
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Multi hashes with a primary scheme and verifies with whichever configured
// scheme recognizes the stored hash.
type Multi struct {
	primary Scheme
	legacy  []Scheme
}

// NewMulti returns a Multi that hashes with primary.
func NewMulti(primary Scheme, legacy ...Scheme) *Multi {
	return &Multi{primary: primary, legacy: legacy}
}

// Hash hashes password with the primary scheme.
func (m *Multi) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

// Verify checks password against encodedHash using the recognizing scheme.
func (m *Multi) Verify(password string, encodedHash string) (bool, error) {
	s := m.schemeFor(encodedHash)
	if s == nil {
		return false, ErrUnsupportedHash
	}
	return s.Verify(password, encodedHash)
}

// NeedsUpgrade reports whether encodedHash should be rehashed with the
// primary scheme.
func (m *Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	if m.primary.Recognizes(encodedHash) {
		return m.primary.NeedsUpgrade(encodedHash)
	}
	if m.schemeFor(encodedHash) == nil {
		return false, ErrUnsupportedHash
	}
	return true, nil
}

func (m *Multi) schemeFor(encodedHash string) Scheme {
	if m.primary.Recognizes(encodedHash) {
		return m.primary
	}
	for _, s := range m.legacy {
		if s.Recognizes(encodedHash) {
			return s
		}
	}
	return nil
}
