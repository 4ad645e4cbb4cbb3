package common

import "context"

// MockCmdRunner implements CmdRunner for testing
type MockCmdRunner struct {
	RunFunc          func(ctx context.Context, name string, args ...string) ([]byte, error)
	RunWithInputFunc func(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
	StartFunc        func(ctx context.Context, name string, args ...string) (Process, error)
}

func (m *MockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return []byte("mocked output"), nil
}

func (m *MockCmdRunner) RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	if m.RunWithInputFunc != nil {
		return m.RunWithInputFunc(ctx, input, name, args...)
	}
	return nil, nil
}

func (m *MockCmdRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, name, args...)
	}
	return &MockProcess{}, nil
}

// MockProcess implements Process for testing
type MockProcess struct {
	WaitErr error
	Killed  bool
}

func (p *MockProcess) Wait() error {
	return p.WaitErr
}

func (p *MockProcess) Kill() error {
	p.Killed = true
	return nil
}
