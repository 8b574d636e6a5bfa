package portal

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/content"
	"github.com/skynetlabs/skynet/internal/uuid"
	"github.com/skynetlabs/skynet/keys"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	regclient "github.com/skynetlabs/skynet/registry/client"
	"github.com/skynetlabs/skynet/skylink"
	"github.com/stretchr/testify/require"
)

var testKeys = keys.GenKeyPairFromSeed("portal test")

func newTestServer(t *testing.T, options Options) *httptest.Server {
	t.Helper()
	app := NewApp(context.Background(), NewMemoryStore(), options)
	srv := httptest.NewServer(Handler(app, nil))
	t.Cleanup(srv.Close)
	return srv
}

func entryQuery(publicKey, dataKey string) string {
	return url.Values{
		"publickey": {"ed25519:" + publicKey},
		"datakey":   {hex.EncodeToString(registry.HashDataKey(dataKey))},
	}.Encode()
}

func signedRequest(t *testing.T, kp keys.KeyPair, dataKey string, data []byte, revision uint64) []byte {
	t.Helper()
	entry := skynet.RegistryEntry{DataKey: dataKey, Data: data, Revision: revision}
	sig, err := registry.Sign(kp.PrivateKey, entry, false)
	require.NoError(t, err)
	pk, err := keys.ParsePublicKey(kp.PublicKey)
	require.NoError(t, err)
	body, err := json.Marshal(regclient.PostEntryRequest{
		PublicKey: regclient.PublicKey{Algorithm: "ed25519", Key: regclient.ByteArray(pk)},
		DataKey:   hex.EncodeToString(registry.HashDataKey(dataKey)),
		Revision:  revision,
		Data:      data,
		Signature: sig,
	})
	require.NoError(t, err)
	return body
}

func postEntry(t *testing.T, srv *httptest.Server, body []byte) (int, string) {
	t.Helper()
	resp, err := http.Post(srv.URL+skynet.DefaultRegistryEndpointPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var env errcode.MessageEnvelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env.Message
}

func TestRegistryRoundTrip(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + skynet.DefaultRegistryEndpointPath + "?" + entryQuery(testKeys.PublicKey, "app"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	code, _ := postEntry(t, srv, signedRequest(t, testKeys, "app", []byte("hello"), 7))
	require.Equal(t, http.StatusNoContent, code)

	resp, err = http.Get(srv.URL + skynet.DefaultRegistryEndpointPath + "?" + entryQuery(testKeys.PublicKey, "app") + "&timeout=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body regclient.EntryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, hex.EncodeToString([]byte("hello")), body.Data)
	require.Equal(t, "7", body.Revision.String())
	require.Len(t, body.Signature, 2*skynet.SignatureSize)
}

func TestRegistryRejectsStaleRevision(t *testing.T) {
	srv := newTestServer(t, Options{})

	code, _ := postEntry(t, srv, signedRequest(t, testKeys, "app", []byte("a"), 3))
	require.Equal(t, http.StatusNoContent, code)

	for _, rev := range []uint64{0, 3} {
		code, message := postEntry(t, srv, signedRequest(t, testKeys, "app", []byte("b"), rev))
		require.Equal(t, http.StatusBadRequest, code)
		require.Contains(t, message, "must be greater than 3")
	}

	code, _ = postEntry(t, srv, signedRequest(t, testKeys, "app", []byte("c"), 4))
	require.Equal(t, http.StatusNoContent, code)
}

func TestRegistryRejectsBadWrites(t *testing.T) {
	srv := newTestServer(t, Options{})
	other := keys.GenKeyPairFromSeed("not the owner")

	// Signed by someone else but claiming testKeys as owner.
	var forged regclient.PostEntryRequest
	require.NoError(t, json.Unmarshal(signedRequest(t, other, "app", []byte("x"), 0), &forged))
	pk, err := keys.ParsePublicKey(testKeys.PublicKey)
	require.NoError(t, err)
	forged.PublicKey.Key = regclient.ByteArray(pk)
	forgedBody, err := json.Marshal(forged)
	require.NoError(t, err)

	tooLarge, err := json.Marshal(regclient.PostEntryRequest{
		PublicKey: regclient.PublicKey{Algorithm: "ed25519", Key: regclient.ByteArray(pk)},
		DataKey:   hex.EncodeToString(registry.HashDataKey("app")),
		Data:      bytes.Repeat([]byte{1}, skynet.MaxRegistryDataSize+1),
		Signature: make(regclient.ByteArray, skynet.SignatureSize),
	})
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		body []byte
		code int
	}{
		"forged":    {forgedBody, http.StatusBadRequest},
		"too large": {tooLarge, http.StatusRequestEntityTooLarge},
		"garbage":   {[]byte("{"), http.StatusBadRequest},
		"algorithm": {[]byte(`{"publickey":{"algorithm":"rsa","key":[]}}`), http.StatusBadRequest},
	} {
		t.Run(name, func(t *testing.T) {
			code, message := postEntry(t, srv, tc.body)
			require.Equal(t, tc.code, code)
			require.NotEmpty(t, message)
		})
	}
}

func TestRegistryGetValidatesQuery(t *testing.T) {
	srv := newTestServer(t, Options{})
	hashed := hex.EncodeToString(registry.HashDataKey("app"))

	for name, query := range map[string]string{
		"missing prefix": "publickey=" + testKeys.PublicKey + "&datakey=" + hashed,
		"short datakey":  "publickey=ed25519:" + testKeys.PublicKey + "&datakey=abc",
		"timeout":        "publickey=ed25519:" + testKeys.PublicKey + "&datakey=" + hashed + "&timeout=301",
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + skynet.DefaultRegistryEndpointPath + "?" + query)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func upload(t *testing.T, srv *httptest.Server, data []byte, header http.Header) (*http.Response, skynet.UploadResult) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(content.DefaultFileFieldName, "file.json")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/skynet/skyfile", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res skynet.UploadResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp, res
}

func TestSkyfileUploadAndDownload(t *testing.T) {
	srv := newTestServer(t, Options{})
	data := []byte(`{"_data":1,"_v":2}`)

	resp, res := upload(t, srv, data, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sl, err := skylink.Parse(res.Skylink)
	require.NoError(t, err)
	require.True(t, sl.IsV1())
	require.Equal(t, res.MerkleRoot, hex.EncodeToString(sl.MerkleRoot()))

	get, err := http.Get(srv.URL + "/" + sl.String())
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	got, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.Equal(t, sl.String(), get.Header.Get(content.SkylinkHeader))
	require.Empty(t, get.Header.Get(content.ProofHeader))
	require.True(t, strings.HasPrefix(get.Header.Get("ETag"), `"sha256:`))

	// Base32 links address the same file.
	b32, err := http.Get(srv.URL + "/" + sl.Base32())
	require.NoError(t, err)
	b32.Body.Close()
	require.Equal(t, http.StatusOK, b32.StatusCode)

	// Revalidation with the ETag answers 304.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/"+sl.String(), nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", get.Header.Get("ETag"))
	cached, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	cached.Body.Close()
	require.Equal(t, http.StatusNotModified, cached.StatusCode)
}

func TestDownloadUnknown(t *testing.T) {
	srv := newTestServer(t, Options{})

	v1, err := skylink.NewV1(make([]byte, 32), 0, 1)
	require.NoError(t, err)
	v2, err := registry.EntryLink(testKeys.PublicKey, "nothing", false)
	require.NoError(t, err)

	for _, sl := range []skylink.Skylink{v1, v2} {
		resp, err := http.Get(srv.URL + "/" + sl.String())
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestDownloadV2ServesProof(t *testing.T) {
	srv := newTestServer(t, Options{})

	_, res := upload(t, srv, []byte("target"), nil)
	target, err := skylink.Parse(res.Skylink)
	require.NoError(t, err)

	// Two hops: app -> pointer -> target.
	pointer, err := registry.EntryLink(testKeys.PublicKey, "pointer", false)
	require.NoError(t, err)
	code, _ := postEntry(t, srv, signedRequest(t, testKeys, "pointer", target.Bytes(), 0))
	require.Equal(t, http.StatusNoContent, code)
	code, _ = postEntry(t, srv, signedRequest(t, testKeys, "app", pointer.Bytes(), 0))
	require.Equal(t, http.StatusNoContent, code)

	anchor, err := registry.EntryLink(testKeys.PublicKey, "app", false)
	require.NoError(t, err)
	resp, err := http.Get(srv.URL + "/" + anchor.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, target.String(), resp.Header.Get(content.SkylinkHeader))

	var proof []registry.ProofEntry
	require.NoError(t, json.Unmarshal([]byte(resp.Header.Get(content.ProofHeader)), &proof))
	require.Len(t, proof, 2)
	result, err := registry.ValidateProof(proof, registry.ProofOptions{AnchorLink: anchor.String(), ExpectedContentID: target.String()})
	require.NoError(t, err)
	require.Equal(t, target.String(), result.ContentID)

	// Deleting the entry makes the link unresolvable.
	code, _ = postEntry(t, srv, signedRequest(t, testKeys, "app", skynet.DeletionEntryData, 1))
	require.Equal(t, http.StatusNoContent, code)
	deleted, err := http.Get(srv.URL + "/" + anchor.String())
	require.NoError(t, err)
	deleted.Body.Close()
	require.Equal(t, http.StatusNotFound, deleted.StatusCode)
}

func TestAPIKey(t *testing.T) {
	srv := newTestServer(t, Options{APIKey: "secret"})

	resp, _ := upload(t, srv, []byte("x"), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = upload(t, srv, []byte("x"), http.Header{"Skynet-Api-Key": {"secret"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The liveness route is always open.
	alive, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	alive.Body.Close()
	require.Equal(t, http.StatusOK, alive.StatusCode)
}

func TestUploadSizeLimit(t *testing.T) {
	srv := newTestServer(t, Options{MaxUploadSize: 1024})

	resp, _ := upload(t, srv, bytes.Repeat([]byte("x"), 4096), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, Options{Metrics: true})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "skynet_")
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	id := hex.EncodeToString(registry.HashDataKey(t.Name()))

	_, err := s.GetEntry(ctx, id)
	require.ErrorIs(t, err, errcode.ErrorCodeEntryUnknown)

	entry := StoredEntry{
		PublicKey:     []byte{1, 2, 3},
		HashedDataKey: []byte{4, 5, 6},
		Data:          []byte{0, 7, 0},
		Revision:      2,
		Signature:     []byte{8, 9},
	}
	require.NoError(t, s.PutEntry(ctx, id, entry))
	got, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	require.Equal(t, entry, got)

	entry.Revision = 2
	require.ErrorIs(t, s.PutEntry(ctx, id, entry), errcode.ErrorCodeRevisionTooLow)
	entry.Revision = 3
	require.NoError(t, s.PutEntry(ctx, id, entry))

	_, err = s.GetFile(ctx, id)
	require.ErrorIs(t, err, errcode.ErrorCodeContentUnknown)

	file := newStoredFile([]byte("file data"), "text/plain", "f.txt")
	require.NoError(t, s.PutFile(ctx, id, file))
	require.NoError(t, s.PutFile(ctx, id, newStoredFile([]byte("ignored"), "text/plain", "g.txt")))
	gotFile, err := s.GetFile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, file, gotFile)
	require.NoError(t, gotFile.verify())
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), "skynet-test::"+uuid.NewString()+"::")
	defer s.Close()
	testStore(t, s)
}

func TestStoredFileVerify(t *testing.T) {
	f := newStoredFile([]byte("data"), "", "")
	require.NoError(t, f.verify())
	f.Data = []byte("tampered")
	require.Error(t, f.verify())
	f.Digest = "bogus"
	require.Error(t, f.verify())
}
