// Command hsmsign produces a canonical-message signature for one of the
// five signed actions, either from a PKCS#11 HSM slot (for moderators
// and admins who keep their key off-host) or from a local Ed25519 key
// file as a software fallback for development.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/miekg/pkcs11"
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"github.com/spf13/cobra"

	"github.com/blackyblack/identity-server/internal/codec"
	"github.com/blackyblack/identity-server/internal/idcrypto"
)

func main() {
	var (
		actionStr string
		user      string
		nonce     int64
		balance   int64
		proofID   string
		module    string
		slot      uint
		pin       string
		label     string
		keyFile   string
	)

	cmd := &cobra.Command{
		Use:   "hsmsign",
		Short: "sign a canonical trustd action message",
		RunE: func(cmd *cobra.Command, args []string) error {
			action := codec.Action(actionStr)
			if err := action.Validate(); err != nil {
				return err
			}
			msg := codec.CanonicalMessage(action, user, nonce, balance, proofID)

			var (
				sig    []byte
				pubB58 string
				err    error
			)
			if module != "" {
				sig, pubB58, err = signWithHSM(module, slot, pin, label, msg)
			} else {
				sig, pubB58, err = signWithKeyFile(keyFile, msg)
			}
			if err != nil {
				return err
			}

			fmt.Printf("signer:    %s\n", pubB58)
			fmt.Printf("signature: %s\n", codec.EncodeSignature(sig))
			return nil
		},
	}

	cmd.Flags().StringVar(&actionStr, "action", "", "vouch, proof, punish, moderators, or admins")
	cmd.Flags().StringVar(&user, "user", "", "target identity, base58")
	cmd.Flags().Int64Var(&nonce, "nonce", 0, "nonce for this signer's namespace")
	cmd.Flags().Int64Var(&balance, "balance", 0, "balance (proof/punish only)")
	cmd.Flags().StringVar(&proofID, "proof-id", "", "proof id (proof/punish only)")
	cmd.Flags().StringVar(&module, "pkcs11-module", "", "path to a PKCS#11 shared object; empty uses --key-file instead")
	cmd.Flags().UintVar(&slot, "pkcs11-slot", 0, "PKCS#11 slot index")
	cmd.Flags().StringVar(&pin, "pkcs11-pin", "", "PKCS#11 user PIN")
	cmd.Flags().StringVar(&label, "pkcs11-label", "", "CKA_LABEL of the private key object to sign with")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "hex-encoded 64-byte Ed25519 private key (software fallback)")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("user")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signWithHSM signs msg using an Ed25519 private key object held on a
// PKCS#11 token, identified by its CKA_LABEL. It returns the signature
// and the base58-encoded public key read back from the matching public
// key object (expected to share the same label).
func signWithHSM(module string, slot uint, pin, label string, msg []byte) ([]byte, string, error) {
	ctx := pkcs11.New(module)
	if ctx == nil {
		return nil, "", fmt.Errorf("failed to load PKCS#11 module %q", module)
	}
	if err := ctx.Initialize(); err != nil {
		return nil, "", fmt.Errorf("initialize PKCS#11 module: %w", err)
	}
	defer ctx.Finalize()
	defer ctx.Destroy()

	slots, err := ctx.GetSlotList(true)
	if err != nil {
		return nil, "", fmt.Errorf("list PKCS#11 slots: %w", err)
	}
	if int(slot) >= len(slots) {
		return nil, "", fmt.Errorf("slot index %d out of range (found %d slots)", slot, len(slots))
	}

	session, err := ctx.OpenSession(slots[slot], pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, "", fmt.Errorf("open PKCS#11 session: %w", err)
	}
	defer ctx.CloseSession(session)

	if pin != "" {
		if err := ctx.Login(session, pkcs11.CKU_USER, pin); err != nil {
			return nil, "", fmt.Errorf("PKCS#11 login: %w", err)
		}
		defer ctx.Logout(session)
	}

	privHandle, err := findObject(ctx, session, label, pkcs11.CKO_PRIVATE_KEY)
	if err != nil {
		return nil, "", err
	}
	pubHandle, err := findObject(ctx, session, label, pkcs11.CKO_PUBLIC_KEY)
	if err != nil {
		return nil, "", err
	}

	pubAttrs, err := ctx.GetAttributeValue(session, pubHandle, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
	})
	if err != nil || len(pubAttrs) == 0 {
		return nil, "", fmt.Errorf("read public key from token: %w", err)
	}
	pub := pubAttrs[0].Value
	if len(pub) != idcrypto.PublicKeySize {
		return nil, "", fmt.Errorf("unexpected public key length %d from token", len(pub))
	}

	if err := ctx.SignInit(session, []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_EDDSA, nil)}, privHandle); err != nil {
		return nil, "", fmt.Errorf("SignInit: %w", err)
	}
	sig, err := ctx.Sign(session, msg)
	if err != nil {
		return nil, "", fmt.Errorf("Sign: %w", err)
	}

	return sig, codec.EncodePublicKey(pub), nil
}

func findObject(ctx *pkcs11.Ctx, session pkcs11.SessionHandle, label string, class uint) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := ctx.FindObjectsInit(session, template); err != nil {
		return 0, fmt.Errorf("FindObjectsInit: %w", err)
	}
	defer ctx.FindObjectsFinal(session)

	handles, _, err := ctx.FindObjects(session, 1)
	if err != nil {
		return 0, fmt.Errorf("FindObjects: %w", err)
	}
	if len(handles) == 0 {
		return 0, fmt.Errorf("no object with label %q and class %d found on token", label, class)
	}
	return handles[0], nil
}

// signWithKeyFile is the software fallback for development: keyFile
// holds a hex-encoded 64-byte Ed25519 private key (seed || public key,
// the same layout idcrypto.GenerateKey produces).
func signWithKeyFile(keyFile string, msg []byte) ([]byte, string, error) {
	if keyFile == "" {
		return nil, "", fmt.Errorf("one of --pkcs11-module or --key-file is required")
	}
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, "", fmt.Errorf("read key file: %w", err)
	}
	priv := make([]byte, hex.DecodedLen(len(raw)))
	n, err := hex.Decode(priv, raw)
	if err != nil {
		return nil, "", fmt.Errorf("decode hex key file: %w", err)
	}
	priv = priv[:n]
	if len(priv) != idcrypto.PublicKeySize*2 {
		return nil, "", fmt.Errorf("expected a %d-byte Ed25519 private key, got %d", idcrypto.PublicKeySize*2, len(priv))
	}

	pub := priv[idcrypto.PublicKeySize:]
	sig := idcrypto.Sign(ed25519.PrivateKey(priv), msg)
	return sig, codec.EncodePublicKey(pub), nil
}
