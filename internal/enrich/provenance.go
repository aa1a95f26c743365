package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/model"
	"github.com/phantomscan/phantomscan/internal/policy"
)

// Provenance scores. npm attestations prove origin; a registry signature
// without an attestation is weaker evidence. PyPI has no widely deployed
// provenance yet, so it scores a fixed neutral value instead of penalizing
// every package on the ecosystem.
const (
	provenanceAttested  = 0.0
	provenanceSigned    = 0.2
	provenanceAbsent    = 1.0
	provenanceUnscanned = 0.5
)

// provenanceClient fills the provenance-risk slot from registry-published
// build attestations.
type provenanceClient struct {
	pol    *policy.Policy
	client *http.Client
}

// npmPackument is the subset of the npm package document we read.
type npmPackument struct {
	DistTags map[string]string        `json:"dist-tags"`
	Versions map[string]npmVersionDoc `json:"versions"`
}

type npmVersionDoc struct {
	Dist npmDist `json:"dist"`

	// NPMProvenance is the legacy provenance marker predating attestations.
	NPMProvenance json.RawMessage `json:"_npmProvenance"`
}

type npmDist struct {
	Attestations json.RawMessage `json:"attestations"`
	Signatures   []npmSignature  `json:"signatures"`
}

type npmSignature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

func (c *provenanceClient) Signal() string { return model.SignalProvenanceRisk }

func (c *provenanceClient) Fetch(ctx context.Context, cand model.Candidate) (model.Signal, error) {
	sig := Default(model.SignalProvenanceRisk)

	switch cand.Ecosystem {
	case model.EcosystemPyPI:
		sig.Value = provenanceUnscanned
		sig.Reasons = append(sig.Reasons, "Provenance not verifiable for this ecosystem")
		return sig, nil
	case model.EcosystemNPM:
	default:
		return sig, nil
	}

	var pack npmPackument
	u := fmt.Sprintf("%s/%s", c.pol.Network.NPMRegistry, cand.Name)
	if err := getJSON(ctx, c.client, u, &pack); err != nil {
		if NotFound(err) {
			sig.Value = provenanceAbsent
			sig.Reasons = append(sig.Reasons, "No published provenance")
			return sig, nil
		}
		return sig, err
	}

	version := cand.Version
	if version == "" {
		version = pack.DistTags["latest"]
	}
	doc, ok := pack.Versions[version]
	if !ok {
		sig.Value = provenanceAbsent
		sig.Reasons = append(sig.Reasons, "No published provenance")
		return sig, nil
	}

	switch {
	case len(doc.Dist.Attestations) > 0 || len(doc.NPMProvenance) > 0:
		sig.Value = provenanceAttested
	case signedWithKey(doc.Dist.Signatures):
		sig.Value = provenanceSigned
		sig.Reasons = append(sig.Reasons, "Registry signature present but no build attestation")
	default:
		sig.Value = provenanceAbsent
		sig.Reasons = append(sig.Reasons, "No published provenance")
	}
	return sig, nil
}

func signedWithKey(sigs []npmSignature) bool {
	for _, s := range sigs {
		if s.KeyID != "" {
			return true
		}
	}
	return false
}
