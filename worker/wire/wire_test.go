package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(NewStart(big.NewInt(5), 21, big.NewInt(7))))
	require.NoError(t, enc.Encode(NewResume(big.NewInt(5), 21, big.NewInt(7), json.RawMessage(`{"a":1}`))))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Equal(t, []string{
		`{"kind":"start","x":"5","t":21,"n":"7"}`,
		`{"kind":"resume","x":"5","t":21,"n":"7","state":{"a":1}}`,
	}, lines)

	dec := NewDecoder(&buf)
	var req Request
	require.NoError(t, dec.Decode(&req))
	require.Equal(t, KindStart, req.Kind)
	require.NoError(t, dec.Decode(&req))
	require.Equal(t, KindResume, req.Kind)
	require.JSONEq(t, `{"a":1}`, string(req.State))
	x, n, err := req.Params()
	require.NoError(t, err)
	require.Equal(t, "5", x.String())
	require.Equal(t, "7", n.String())

	require.ErrorIs(t, dec.Decode(&req), io.EOF)
}

func TestResponseSolution(t *testing.T) {
	resp := Response{Kind: KindComplete, X: "5", T: 21, N: "7", Y: "9", U: []string{"1", "2"}}
	sol, err := resp.Solution()
	require.NoError(t, err)
	require.Equal(t, "5", sol.X.String())
	require.Equal(t, "9", sol.Y.String())
	require.Len(t, sol.U, 2)

	resp.U = []string{"1", "0x2"}
	_, err = resp.Solution()
	require.ErrorIs(t, err, ErrMalformed)

	resp = Response{X: "abc", N: "7"}
	_, _, err = resp.Params()
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeMalformed(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{\"kind\":\n"))
	var resp Response
	require.ErrorIs(t, dec.Decode(&resp), ErrMalformed)
}
