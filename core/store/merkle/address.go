package merkle

import "golang.org/x/xerrors"

// TokenSize is the number of hexadecimal characters of an edge label.
const TokenSize = 2

// tokenize splits the address into its edge labels. A trailing character that
// does not fill a token is ignored, which never happens for valid addresses.
func tokenize(address string) []string {
	tokens := make([]string, 0, len(address)/TokenSize)

	for i := 0; i+TokenSize <= len(address); i += TokenSize {
		tokens = append(tokens, address[i:i+TokenSize])
	}

	return tokens
}

// parentAndBranch returns the address of the parent node and the token that
// leads from the parent to the address. The root has no parent.
func parentAndBranch(address string) (string, string) {
	if len(address) < TokenSize {
		return "", ""
	}

	cut := len(address) - TokenSize

	return address[:cut], address[cut:]
}

// validateAddress returns ErrInvalidAddress unless the address is made of
// lowercase hexadecimal characters and has an even length. The empty address
// is the root.
func validateAddress(address string) error {
	if len(address)%TokenSize != 0 {
		return xerrors.Errorf("address '%s' has an odd length: %w", address, ErrInvalidAddress)
	}

	for _, c := range address {
		if !('0' <= c && c <= '9') && !('a' <= c && c <= 'f') {
			return xerrors.Errorf("address '%s' is not lowercase hex: %w", address, ErrInvalidAddress)
		}
	}

	return nil
}
