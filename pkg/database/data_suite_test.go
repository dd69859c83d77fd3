package data_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tacusci/logging/v2"
)

func TestData(t *testing.T) {
	existingLoggingLevel := logging.CurrentLoggingLevel
	logging.CurrentLoggingLevel = logging.SilentLevel
	defer func() { logging.CurrentLoggingLevel = existingLoggingLevel }()

	RegisterFailHandler(Fail)
	RunSpecs(t, "Data Suite")
}
