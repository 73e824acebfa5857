package memory

import (
	"testing"

	"github.com/cameronmore/authd/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		return New()
	})
}
