package networks

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/fhe-identity-auth/interfaces"
)

// Deployment is one entry of the network to contract address table.
type Deployment struct {
	ChainID   interfaces.ChainID `json:"chainId"`
	ChainName string             `json:"chainName"`
	Address   common.Address     `json:"address"`
}

// Deployed reports whether the entry points at a real contract.
func (d Deployment) Deployed() bool {
	return d.Address != (common.Address{})
}

// DefaultDeployments lists the supported networks. Addresses are filled in
// from a deployments file once the contract is deployed.
var DefaultDeployments = []Deployment{
	{ChainID: interfaces.HardhatChainID, ChainName: "Hardhat Local"},
	{ChainID: interfaces.SepoliaChainID, ChainName: "Sepolia Testnet"},
}

// Resolver maps a network identifier to the deployed EncryptedIdentityAuth
// contract. It is a pure lookup and never fails for unknown networks.
type Resolver struct {
	deployments map[interfaces.ChainID]Deployment
}

// NewResolver creates a resolver over the given deployments. Later entries
// override earlier ones for the same chain.
func NewResolver(deployments ...Deployment) *Resolver {
	r := &Resolver{deployments: make(map[interfaces.ChainID]Deployment, len(deployments))}
	for _, d := range deployments {
		r.deployments[d.ChainID] = d
	}
	return r
}

// Resolve returns the contract address for chainID. The second result is
// false when the network is unsupported or the contract is not deployed there.
func (r *Resolver) Resolve(chainID interfaces.ChainID) (common.Address, bool) {
	d, ok := r.deployments[chainID]
	if !ok || !d.Deployed() {
		return common.Address{}, false
	}
	return d.Address, true
}

// ChainName returns a display name for chainID.
func (r *Resolver) ChainName(chainID interfaces.ChainID) string {
	if d, ok := r.deployments[chainID]; ok && d.ChainName != "" {
		return d.ChainName
	}
	if chainID == 0 {
		return "Chain ID unknown"
	}
	return fmt.Sprintf("Chain ID %d", chainID)
}

// SupportedNetworks returns all known networks ordered by chain id.
func (r *Resolver) SupportedNetworks() []Deployment {
	res := make([]Deployment, 0, len(r.deployments))
	for _, d := range r.deployments {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ChainID < res[j].ChainID })
	return res
}

type deploymentEntry struct {
	Address   string `json:"address"`
	ChainID   uint64 `json:"chainId"`
	ChainName string `json:"chainName"`
}

// LoadDeployments parses a deployments file keyed by decimal chain id:
//
//	{"31337": {"address": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "chainName": "hardhat"}}
//
// Entries are merged over base.
func LoadDeployments(r io.Reader, base []Deployment) ([]Deployment, error) {
	var raw map[string]deploymentEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("could not parse deployments: %w", err)
	}

	merged := make(map[interfaces.ChainID]Deployment, len(base)+len(raw))
	for _, d := range base {
		merged[d.ChainID] = d
	}

	for key, entry := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", key, err)
		}
		if entry.Address != "" && !common.IsHexAddress(entry.Address) {
			return nil, fmt.Errorf("invalid contract address for chain %d: %s", id, entry.Address)
		}

		d := merged[interfaces.ChainID(id)]
		d.ChainID = interfaces.ChainID(id)
		d.Address = common.HexToAddress(entry.Address)
		if entry.ChainName != "" && d.ChainName == "" {
			d.ChainName = entry.ChainName
		}
		merged[d.ChainID] = d
	}

	res := make([]Deployment, 0, len(merged))
	for _, d := range merged {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ChainID < res[j].ChainID })
	return res, nil
}

// TransportHint returns the advice shown when the RPC endpoint of chainID
// cannot be reached.
func TransportHint(chainID interfaces.ChainID) string {
	if chainID.IsLocal() {
		return "Hardhat node is not running. Please start it with: npx hardhat node"
	}
	return "Failed to connect to RPC. Please check your network connection."
}
