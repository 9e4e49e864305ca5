package domain_test

import (
	"testing"

	"docchain/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"domain must stay importable by callers outside this module")
}

func TestDomainOnlyImportsUUID(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImportForbidden("github.com/google/uuid"),
		"domain carries no third-party dependency besides uuid")
}
