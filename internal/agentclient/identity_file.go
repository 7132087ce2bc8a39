package agentclient

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"agentmesh/internal/identity"
)

// IdentityFile is the on-disk identity of one agent
type IdentityFile struct {
	Name              string `yaml:"name,omitempty"`
	Registry          string `yaml:"registry,omitempty"`
	DID               string `yaml:"did,omitempty"`
	APIKey            string `yaml:"api_key,omitempty"`
	RegistryPublicKey string `yaml:"registry_public_key,omitempty"`
	PublicKey         string `yaml:"public_key"`
	PrivateKey        string `yaml:"private_key"`
}

// LoadIdentity reads and validates an identity file
func LoadIdentity(path string) (*IdentityFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}
	var f IdentityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse identity file %s: %w", path, err)
	}
	if _, err := f.KeyPair(); err != nil {
		return nil, fmt.Errorf("identity file %s: %w", path, err)
	}
	return &f, nil
}

// Save writes the file readable by the owner only
func (f *IdentityFile) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}
	return nil
}

// KeyPair rebuilds the key pair and checks that both halves match
func (f *IdentityFile) KeyPair() (*identity.KeyPair, error) {
	if f.PrivateKey == "" {
		return nil, errors.New("private_key is empty")
	}
	kp, err := identity.KeyPairFromPrivateKey(f.PrivateKey)
	if err != nil {
		return nil, err
	}
	if f.PublicKey != "" && f.PublicKey != kp.PublicKey {
		return nil, errors.New("public_key does not match private_key")
	}
	return kp, nil
}
