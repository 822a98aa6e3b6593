package rdns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolver struct {
	names []string
	err   error
	block bool
}

func (f fakeResolver) LookupAddr(ctx context.Context, _ string) ([]string, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.names, f.err
}

func testClaims() map[string][]string {
	return map[string][]string{
		"googlebot": {"googlebot.com", "google.com"},
		"bingbot":   {"search.msn.com"},
	}
}

func TestVerify_MatchingSuffix(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{names: []string{"crawl-66-249-66-1.googlebot.com."}}, time.Second, testClaims(), zap.NewNop())
	require.True(t, v.Verify(context.Background(), "66.249.66.1", "googlebot"))
}

func TestVerify_ExactDomainMatch(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{names: []string{"google.com."}}, time.Second, testClaims(), zap.NewNop())
	require.True(t, v.Verify(context.Background(), "66.249.66.1", "googlebot"))
}

func TestVerify_SuffixMustBeOnLabelBoundary(t *testing.T) {
	t.Parallel()

	// evilgoogle.com must not pass as a google.com suffix.
	v := New(fakeResolver{names: []string{"crawler.evilgoogle.com."}}, time.Second, testClaims(), zap.NewNop())
	require.False(t, v.Verify(context.Background(), "198.51.100.10", "googlebot"))
}

func TestVerify_MismatchedDomain(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{names: []string{"ec2-52-10-20-30.us-west-2.compute.amazonaws.com."}}, time.Second, testClaims(), zap.NewNop())
	require.False(t, v.Verify(context.Background(), "52.10.20.30", "googlebot"))
}

func TestVerify_LookupErrorFailsClosed(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{err: errors.New("nxdomain")}, time.Second, testClaims(), zap.NewNop())
	require.False(t, v.Verify(context.Background(), "66.249.66.1", "googlebot"))
}

func TestVerify_TimeoutFailsClosed(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{block: true}, 20*time.Millisecond, testClaims(), zap.NewNop())

	start := time.Now()
	verified := v.Verify(context.Background(), "66.249.66.1", "googlebot")
	require.False(t, verified)
	require.Less(t, time.Since(start), time.Second)
}

func TestVerify_UnknownClaim(t *testing.T) {
	t.Parallel()

	v := New(fakeResolver{names: []string{"crawler.example.com."}}, time.Second, testClaims(), zap.NewNop())
	require.False(t, v.Verify(context.Background(), "198.51.100.10", "duckduckbot"))
	require.False(t, v.Verify(context.Background(), "198.51.100.10", ""))
}

func TestVerify_CaseAndDotInsensitive(t *testing.T) {
	t.Parallel()

	claims := map[string][]string{
		"GoogleBot": {" Googlebot.COM. "},
	}
	v := New(fakeResolver{names: []string{"Crawl-1.GOOGLEBOT.com"}}, time.Second, claims, zap.NewNop())
	require.True(t, v.Verify(context.Background(), "66.249.66.1", "googlebot"))
}
