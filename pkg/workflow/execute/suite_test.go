// Scenario specs for the executor. To run them with the Ginkgo binary (from repo root):
//
//	go run github.com/onsi/ginkgo/v2/ginkgo ./pkg/workflow/execute/...
package execute_test

import (
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestExecuteScenarios(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Execute Scenario Suite")
}
