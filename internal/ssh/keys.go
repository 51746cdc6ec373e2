package ssh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// SSHKeyInfo contains information about an SSH key
type SSHKeyInfo struct {
	Path        string // Full path to the key file
	Name        string // Key filename (e.g., "id_ed25519")
	Type        string // Key type (e.g., "ed25519", "rsa", "ecdsa")
	IsEncrypted bool   // True if key is passphrase-protected
}

// DiscoverSSHKeys scans ~/.ssh/ for private keys
// Returns keys sorted by preference: ed25519 first, then rsa, then others
func DiscoverSSHKeys() ([]SSHKeyInfo, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return discoverKeys(filepath.Join(homeDir, ".ssh"))
}

func discoverKeys(sshDir string) ([]SSHKeyInfo, error) {
	entries, err := os.ReadDir(sshDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .ssh directory: %w", err)
	}

	var keys []SSHKeyInfo
	for _, entry := range entries {
		if entry.IsDir() || !isKeyCandidate(entry.Name()) {
			continue
		}
		// Unparseable files are not keys
		if info, err := ValidateSSHKey(filepath.Join(sshDir, entry.Name())); err == nil {
			keys = append(keys, *info)
		}
	}

	// Sort by preference: ed25519 > rsa > ecdsa > others
	sort.SliceStable(keys, func(i, j int) bool {
		return keyTypePriority(keys[i].Type) < keyTypePriority(keys[j].Type)
	})

	return keys, nil
}

// isKeyCandidate matches id_* and *.pem private key names
func isKeyCandidate(name string) bool {
	if strings.HasSuffix(name, ".pub") {
		return false
	}
	return strings.HasPrefix(name, "id_") || strings.HasSuffix(name, ".pem")
}

var keyPreference = map[string]int{"ed25519": 1, "rsa": 2, "ecdsa": 3}

// keyTypePriority orders key types, lower first
func keyTypePriority(keyType string) int {
	if p, ok := keyPreference[keyType]; ok {
		return p
	}
	return len(keyPreference) + 1
}

// ValidateSSHKey validates a key file and returns its info
func ValidateSSHKey(path string) (*SSHKeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	keyInfo := &SSHKeyInfo{
		Path: path,
		Name: filepath.Base(path),
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		if isPassphraseError(err) {
			keyInfo.IsEncrypted = true
			keyInfo.Type = detectKeyType(data)
			return keyInfo, nil
		}
		return nil, fmt.Errorf("invalid SSH key: %w", err)
	}

	keyInfo.Type = keyTypeFromPublicKey(signer.PublicKey())
	return keyInfo, nil
}

// isPassphraseError checks if the error indicates a passphrase-protected key
func isPassphraseError(err error) bool {
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "passphrase") ||
		strings.Contains(errStr, "encrypted") ||
		strings.Contains(errStr, "ENCRYPTED")
}

func keyTypeFromPublicKey(key ssh.PublicKey) string {
	switch key.Type() {
	case ssh.KeyAlgoED25519:
		return "ed25519"
	case ssh.KeyAlgoRSA:
		return "rsa"
	case ssh.KeyAlgoECDSA256, ssh.KeyAlgoECDSA384, ssh.KeyAlgoECDSA521:
		return "ecdsa"
	default:
		return "unknown"
	}
}

// detectKeyType guesses the key type of an encrypted key from its PEM header
func detectKeyType(data []byte) string {
	content := string(data)

	switch {
	case strings.Contains(content, "OPENSSH PRIVATE KEY"):
		// The OpenSSH format hides the type once encrypted; ed25519 is the modern default
		return "ed25519"
	case strings.Contains(content, "RSA PRIVATE KEY"):
		return "rsa"
	case strings.Contains(content, "EC PRIVATE KEY"):
		return "ecdsa"
	case strings.Contains(content, "DSA PRIVATE KEY"):
		return "dsa"
	default:
		return "unknown"
	}
}

// parseSigner parses a private key, asking for the passphrase on the
// terminal when the key is encrypted
func parseSigner(data []byte, source string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	if !isPassphraseError(err) {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is passphrase protected and stdin is not a terminal (load it into ssh-agent or use the openssh transport)", source)
	}

	fmt.Fprintf(os.Stderr, "Enter passphrase for %s: ", source)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", source, err)
	}
	return signer, nil
}
