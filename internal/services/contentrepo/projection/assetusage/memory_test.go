package assetusage_test

import (
	"testing"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage/assetusagetest"
)

func TestMemoryRepository(t *testing.T) {
	assetusagetest.Run(t, func(*testing.T) assetusage.Repository {
		return assetusage.NewMemory()
	})
}
