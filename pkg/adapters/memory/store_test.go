package memory_test

import (
	"testing"

	"github.com/aretw0/glaucoscan/pkg/adapters/memory"
	"github.com/aretw0/glaucoscan/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}
