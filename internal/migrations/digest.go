package migrations

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest hashes a set of migration files. It depends only on file names and
// contents, not on the order files are given in, and changes when any byte of
// any file changes or a file is added, removed or renamed.
func Digest(files []File) string {
	h := blake3.New()
	for _, f := range sortedByName(files) {
		sum := blake3.Sum256(f.Content)
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(hex.EncodeToString(sum[:])))
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestOf reads the connection's files from src and digests them
func DigestOf(src Source, connection string) (string, error) {
	files, err := src.Files(connection)
	if err != nil {
		return "", err
	}
	return Digest(files), nil
}
