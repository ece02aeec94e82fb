package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"syscall"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/interfaces"
	"github.com/ruteri/fhe-identity-auth/networks"
	"github.com/ruteri/fhe-identity-auth/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testAccount = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func TestStatusChecker_NoOp(t *testing.T) {
	recorder := &recordingRecorder{}
	checker := &StatusChecker{Log: discardLogger(), Metrics: recorder}
	reg := new(registry.MockIdentityRegistry)

	report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: 5}, nil)
	assert.False(t, report.Registered)
	assert.Empty(t, report.Warning)

	report = checker.Check(context.Background(), interfaces.Session{ChainID: interfaces.HardhatChainID}, reg)
	assert.False(t, report.Registered)

	reg.AssertNotCalled(t, "IsRegistered", mock.Anything, mock.Anything)
	assert.Equal(t, []string{StatusSkipped, StatusSkipped}, recorder.checks)
}

func TestStatusChecker_Registered(t *testing.T) {
	reg := new(registry.MockIdentityRegistry)
	reg.On("IsRegistered", mock.Anything, testAccount).Return(true, nil)
	reg.On("RegistrationTimestamp", mock.Anything, testAccount).Return(uint64(1700000000), nil)

	checker := &StatusChecker{Log: discardLogger()}
	report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: interfaces.HardhatChainID}, reg)

	assert.True(t, report.Registered)
	require.NotNil(t, report.Timestamp)
	assert.Equal(t, int64(1700000000), report.Timestamp.Unix())
	assert.Empty(t, report.Warning)
	reg.AssertExpectations(t)
}

func TestStatusChecker_Unregistered(t *testing.T) {
	reg := new(registry.MockIdentityRegistry)
	reg.On("IsRegistered", mock.Anything, testAccount).Return(false, nil)

	checker := &StatusChecker{Log: discardLogger()}
	report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: interfaces.HardhatChainID}, reg)

	assert.False(t, report.Registered)
	assert.Nil(t, report.Timestamp)
	reg.AssertNotCalled(t, "RegistrationTimestamp", mock.Anything, mock.Anything)
}

func TestStatusChecker_Failures(t *testing.T) {
	tests := []struct {
		name        string
		chainID     interfaces.ChainID
		err         error
		wantWarning string
		wantMetric  string
	}{
		{
			name:        "local node down",
			chainID:     interfaces.HardhatChainID,
			err:         fmt.Errorf("Post \"http://127.0.0.1:8545\": dial tcp 127.0.0.1:8545: %w", syscall.ECONNREFUSED),
			wantWarning: networks.TransportHint(interfaces.HardhatChainID),
			wantMetric:  StatusTransport,
		},
		{
			name:        "remote rpc unreachable",
			chainID:     interfaces.SepoliaChainID,
			err:         interfaces.WrapTransport(errors.New("fetch failed")),
			wantWarning: networks.TransportHint(interfaces.SepoliaChainID),
			wantMetric:  StatusTransport,
		},
		{
			name:       "other failure",
			chainID:    interfaces.SepoliaChainID,
			err:        errors.New("abi: cannot unmarshal"),
			wantMetric: StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := new(registry.MockIdentityRegistry)
			reg.On("Address").Return(contractAddress).Maybe()
			reg.On("IsRegistered", mock.Anything, testAccount).Return(false, tt.err)

			recorder := &recordingRecorder{}
			checker := &StatusChecker{Log: discardLogger(), Metrics: recorder}
			report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: tt.chainID}, reg)

			assert.False(t, report.Registered)
			assert.Equal(t, tt.wantWarning, report.Warning)
			assert.Equal(t, []string{tt.wantMetric}, recorder.checks)
		})
	}

	assert.NotEqual(t, networks.TransportHint(interfaces.HardhatChainID), networks.TransportHint(interfaces.SepoliaChainID))
}

func TestStatusChecker_TimestampFailureDefaultsToUnregistered(t *testing.T) {
	reg := new(registry.MockIdentityRegistry)
	reg.On("Address").Return(contractAddress).Maybe()
	reg.On("IsRegistered", mock.Anything, testAccount).Return(true, nil)
	reg.On("RegistrationTimestamp", mock.Anything, testAccount).Return(uint64(0), errors.New("execution reverted"))

	checker := &StatusChecker{Log: discardLogger()}
	report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: interfaces.HardhatChainID}, reg)
	assert.False(t, report.Registered)
	assert.Nil(t, report.Timestamp)
}

func TestStatusChecker_TimestampOutOfRange(t *testing.T) {
	recorder := &recordingRecorder{}
	reg := new(registry.MockIdentityRegistry)
	reg.On("Address").Return(contractAddress).Maybe()
	reg.On("IsRegistered", mock.Anything, testAccount).Return(true, nil)
	reg.On("RegistrationTimestamp", mock.Anything, testAccount).Return(uint64(math.MaxUint64), nil)

	checker := &StatusChecker{Log: discardLogger(), Metrics: recorder}
	report := checker.Check(context.Background(), interfaces.Session{Connected: true, Account: testAccount, ChainID: interfaces.HardhatChainID}, reg)
	assert.False(t, report.Registered)
	assert.Nil(t, report.Timestamp)
	assert.Empty(t, report.Warning)
	assert.Equal(t, []string{StatusFailed}, recorder.checks)
}
