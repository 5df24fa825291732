package llm

import "context"

// FakeResult scripts one GenerateText call of a FakeClient.
type FakeResult struct {
	Text string
	Err  error
}

// FakeClient replays scripted results for offline runs and tests. Once
// the script is exhausted it keeps returning the last entry.
type FakeClient struct {
	ClientName string
	Script     []FakeResult
	Calls      []string
}

func NewFakeClient(name string, script ...FakeResult) *FakeClient {
	if name == "" {
		name = "FakeLLM"
	}
	return &FakeClient{ClientName: name, Script: script}
}

func (f *FakeClient) Name() string { return f.ClientName }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.Calls = append(f.Calls, prompt)
	if len(f.Script) == 0 {
		return "", ErrEmptyResponse
	}
	res := f.Script[0]
	if len(f.Script) > 1 {
		f.Script = f.Script[1:]
	}
	return res.Text, res.Err
}
