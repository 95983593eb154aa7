package vocab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const DefaultPubChemURL = "https://pubchem.ncbi.nlm.nih.gov"

var (
	ErrNotFound = errors.New("no compound found")
	ErrFault    = errors.New("pubchem fault")
)

// APIError is a non-2xx answer from a vocabulary service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vocabulary api error: status %d: %s", e.StatusCode, e.Body)
}

var reCAS = regexp.MustCompile(`(?i)^(CAS-)?(\d+)-(\d+)-(\d+)$`)

// CompoundProperties lists the property names PubChem accepts.
var CompoundProperties = []string{
	"MolecularFormula", "MolecularWeight", "CanonicalSMILES", "IsomericSMILES",
	"InChI", "InChIKey", "IUPACName", "Title", "XLogP", "ExactMass",
	"MonoisotopicMass", "TPSA", "Complexity", "Charge", "HBondDonorCount",
	"HBondAcceptorCount", "RotatableBondCount", "HeavyAtomCount",
	"IsotopeAtomCount", "AtomStereoCount", "DefinedAtomStereoCount",
	"UndefinedAtomStereoCount", "BondStereoCount", "DefinedBondStereoCount",
	"UndefinedBondStereoCount", "CovalentUnitCount", "Volume3D",
	"XStericQuadrupole3D", "YStericQuadrupole3D", "ZStericQuadrupole3D",
	"FeatureCount3D", "FeatureAcceptorCount3D", "FeatureDonorCount3D",
	"FeatureAnionCount3D", "FeatureCationCount3D", "FeatureRingCount3D",
	"FeatureHydrophobeCount3D", "ConformerModelRMSD3D", "EffectiveRotorCount3D",
	"ConformerCount3D", "Fingerprint2D",
}

// PubChem is a paced, memoizing client for the PubChem REST gateway.
// The gateway rejects more than five requests per second.
type PubChem struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cache      *lru.Cache[string, []byte]
	log        zerolog.Logger
}

// NewPubChem creates a client. rps <= 0 falls back to 5 requests per second.
func NewPubChem(baseURL string, rps float64, cacheSize int, log zerolog.Logger) (*PubChem, error) {
	if baseURL == "" {
		baseURL = DefaultPubChemURL
	}
	if rps <= 0 {
		rps = 5
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("pubchem cache: %w", err)
	}
	return &PubChem{
		httpClient: &http.Client{Timeout: 7 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		cache:      cache,
		log:        log.With().Str("component", "pubchem").Logger(),
	}, nil
}

func (c *PubChem) get(ctx context.Context, path string) ([]byte, error) {
	if b, ok := c.cache.Get(path); ok {
		return b, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubchem request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("dur", time.Since(start)).Msg("pubchem")

	if bytes.Contains(body, []byte(`"Fault"`)) {
		return nil, fmt.Errorf("%w: %s", ErrFault, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	c.cache.Add(path, body)
	return body, nil
}

func (c *PubChem) getJSON(ctx context.Context, path string, out any) error {
	b, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Autocomplete returns up to three compound names PubChem suggests for s.
func (c *PubChem) Autocomplete(ctx context.Context, s string) ([]string, error) {
	var js struct {
		Total           int `json:"total"`
		DictionaryTerms struct {
			Compound []string `json:"compound"`
		} `json:"dictionary_terms"`
	}
	if err := c.getJSON(ctx, "/rest/autocomplete/compound/"+url.PathEscape(s)+"/json?limit=3", &js); err != nil {
		return nil, err
	}
	if js.Total == 0 || len(js.DictionaryTerms.Compound) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, s)
	}
	return js.DictionaryTerms.Compound, nil
}

// Synonyms lists the synonyms of the first compound matching s. namespace is
// "name" or "cid".
func (c *PubChem) Synonyms(ctx context.Context, s, namespace string) (cid int, synonyms []string, err error) {
	if namespace == "" {
		namespace = "name"
	}
	var js struct {
		InformationList struct {
			Information []struct {
				CID     int      `json:"CID"`
				Synonym []string `json:"Synonym"`
			} `json:"Information"`
		} `json:"InformationList"`
	}
	path := "/rest/pug/compound/" + url.PathEscape(namespace) + "/" + url.PathEscape(s) + "/synonyms/json"
	if err := c.getJSON(ctx, path, &js); err != nil {
		return 0, nil, err
	}
	info := js.InformationList.Information
	if len(info) == 0 {
		return 0, nil, fmt.Errorf("%w: %q", ErrNotFound, s)
	}
	return info[0].CID, info[0].Synonym, nil
}

// LookupByName autocompletes name and returns the first suggestion and its
// first synonym.
func (c *PubChem) LookupByName(ctx context.Context, name string) (candidate, synonym string, err error) {
	terms, err := c.Autocomplete(ctx, name)
	if err != nil {
		return "", "", err
	}
	candidate = terms[0]
	_, syns, err := c.Synonyms(ctx, candidate, "name")
	if err != nil {
		c.log.Debug().Err(err).Str("candidate", candidate).Msg("no synonyms")
		return candidate, "", nil
	}
	if len(syns) > 0 {
		synonym = syns[0]
	}
	return candidate, synonym, nil
}

// CASNumbers returns every CAS registry number among the synonyms of name.
func (c *PubChem) CASNumbers(ctx context.Context, name string) ([]string, error) {
	_, syns, err := c.Synonyms(ctx, name, "name")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range syns {
		if m := reCAS.FindStringSubmatch(s); m != nil {
			out = append(out, m[2]+"-"+m[3]+"-"+m[4])
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no CAS number for %q", ErrNotFound, name)
	}
	return out, nil
}

func (c *PubChem) CASNumber(ctx context.Context, name string) (string, error) {
	all, err := c.CASNumbers(ctx, name)
	if err != nil {
		return "", err
	}
	return all[0], nil
}

func (c *PubChem) CID(ctx context.Context, name string) (int, error) {
	cid, _, err := c.Synonyms(ctx, name, "name")
	if err != nil {
		return 0, err
	}
	if cid <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return cid, nil
}

// Properties fetches compound properties for one or more CIDs.
func (c *PubChem) Properties(ctx context.Context, cids []int, props ...string) ([]map[string]any, error) {
	if len(cids) == 0 || len(props) == 0 {
		return nil, errors.New("properties: cids and props are required")
	}
	for _, p := range props {
		if !slices.Contains(CompoundProperties, p) {
			return nil, fmt.Errorf("property %s not allowed in pubchem query", p)
		}
	}
	ids := make([]string, len(cids))
	for i, id := range cids {
		ids[i] = strconv.Itoa(id)
	}
	var js struct {
		PropertyTable struct {
			Properties []map[string]any `json:"Properties"`
		} `json:"PropertyTable"`
	}
	path := "/rest/pug/compound/cid/" + strings.Join(ids, ",") + "/property/" + strings.Join(props, ",") + "/json"
	if err := c.getJSON(ctx, path, &js); err != nil {
		return nil, err
	}
	return js.PropertyTable.Properties, nil
}

// MolecularWeight resolves name to a CID and fetches its molecular weight.
func (c *PubChem) MolecularWeight(ctx context.Context, name string) (float64, error) {
	cid, err := c.CID(ctx, name)
	if err != nil {
		return 0, err
	}
	props, err := c.Properties(ctx, []int{cid}, "MolecularWeight")
	if err != nil {
		return 0, err
	}
	if len(props) == 0 {
		return 0, fmt.Errorf("%w: no properties for cid %d", ErrNotFound, cid)
	}
	// PubChem sends the weight as a string ("58.44"), older answers as a number
	switch v := props[0]["MolecularWeight"].(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("%w: molecular weight for cid %d", ErrNotFound, cid)
	}
}
