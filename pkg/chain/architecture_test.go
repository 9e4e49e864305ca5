package chain_test

import (
	"testing"

	"docchain/testutil"
)

func TestChainImportsOnlyDomain(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "chain is a public package")
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdPartyImportForbidden(), "chain has no third-party dependencies")
}
