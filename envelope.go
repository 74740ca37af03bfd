package ooxmlcrypt

// C1: orchestrates encrypt/decrypt, selecting the Standard or Agile
// profile and assembling/parsing the CFB container tree around it.

import (
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt/cfb"
	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt/dataspaces"
	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt/offcrypto"
)

const (
	streamEncryptionInfo   = "EncryptionInfo"
	streamEncryptedPackage = "EncryptedPackage"
)

// Profile selects which MS-OFFCRYPTO encryption profile Encrypt uses.
type Profile = offcrypto.Profile

const (
	ProfileStandard = offcrypto.ProfileStandard
	ProfileAgile    = offcrypto.ProfileAgile
)

// StandardAlgorithm re-exports the Standard profile's AES key-size choice.
type StandardAlgorithm = offcrypto.StandardAlgorithm

const (
	AES128 = offcrypto.AES128
	AES192 = offcrypto.AES192
	AES256 = offcrypto.AES256
)

// AgileOptions re-exports the Agile profile's cipher/hash/spin parameters.
type AgileOptions = offcrypto.AgileOptions

// DefaultAgileOptions returns the AES-256/SHA-512/CBC configuration used
// by conformant modern writers.
func DefaultAgileOptions() AgileOptions {
	return offcrypto.DefaultAgileOptions()
}

// EncryptOptions selects the profile and its algorithm parameters.
type EncryptOptions struct {
	Profile    Profile
	Standard   StandardAlgorithm // used when Profile == ProfileStandard
	Agile      AgileOptions      // used when Profile == ProfileAgile
	ScratchDir string            // temp dir for large bodies; "" uses os.TempDir()
}

// sizeHintOf reports the byte length of r's underlying content when r is
// seekable enough to know it cheaply (an *os.File), or 0 (unknown)
// otherwise. An unknown hint makes NewSink default to its memory-backed
// form; a known one lets it spill to disk for large files instead of
// assuming the cleartext fits in memory.
func sizeHintOf(r io.Reader) int64 {
	f, ok := r.(*os.File)
	if !ok {
		return 0
	}
	st, err := f.Stat()
	if err != nil {
		return 0
	}
	return st.Size()
}

// readAll drains r into a scratch Sink bounded by sizeHint, spilling to
// disk above offcrypto.MemoryThreshold, then returns its full contents.
// The crypto and CFB-assembly stages below are in-memory; the Sink only
// bounds how the input stream itself is staged before that point.
func readAll(r io.Reader, sizeHint int64, dir string) ([]byte, error) {
	sink, err := offcrypto.NewSink(sizeHint, dir)
	if err != nil {
		return nil, ioErr(err)
	}
	defer sink.Close()
	if _, err := io.Copy(sink, r); err != nil {
		return nil, ioErr(err)
	}
	out := make([]byte, sink.Size())
	if _, err := sink.ReadAt(out, 0); err != nil && err != io.EOF {
		return nil, ioErr(err)
	}
	return out, nil
}

// Encrypt reads the cleartext OOXML package from r, encrypts it under
// password per opts, and writes the resulting CFB container to w.
func Encrypt(w io.Writer, r io.Reader, password string, opts EncryptOptions) error {
	cleartext, err := readAll(r, sizeHintOf(r), opts.ScratchDir)
	if err != nil {
		return err
	}
	if Debug {
		log.Println("ooxmlcrypt: encrypting", len(cleartext), "byte package, profile", opts.Profile)
	}

	var encInfo, encPkg []byte
	switch opts.Profile {
	case ProfileAgile:
		encInfo, encPkg, err = offcrypto.EncryptAgile(cleartext, password, opts.Agile)
	default:
		encInfo, encPkg, err = offcrypto.EncryptStandard(cleartext, password, opts.Standard)
	}
	if err != nil {
		return err
	}

	root := []*cfb.Node{
		cfb.Stream(streamEncryptionInfo, encInfo),
		cfb.Stream(streamEncryptedPackage, encPkg),
		cfb.Storage(dataspaces.StorageName,
			cfb.Stream("Version", dataspaces.Version()),
			cfb.Stream("DataSpaceMap", dataspaces.DataSpaceMap()),
			cfb.Storage("DataSpaceInfo",
				cfb.Stream("StrongEncryptionDataSpace", dataspaces.DataSpaceInfoStrongEncryption())),
			cfb.Storage("TransformInfo",
				cfb.Storage("StrongEncryptionTransform",
					cfb.Stream("\x06Primary", dataspaces.TransformInfoPrimary())))),
	}
	if err := cfb.Write(w, root); err != nil {
		return ioErr(err)
	}
	return nil
}

// Decrypt reads an encrypted OOXML container from r, verifies password
// is present to decrypt it, and writes the recovered cleartext package
// to w.
func Decrypt(w io.Writer, r io.Reader, password string) error {
	doc, err := cfb.Open(r)
	if err != nil {
		if err == cfb.ErrNotCFB {
			return ErrNotEncryptedPackage
		}
		return ioErr(err)
	}

	infoStream, err := doc.Open([]string{streamEncryptionInfo})
	if err != nil {
		return ErrMalformedEnvelope
	}
	pkgStream, err := doc.Open([]string{streamEncryptedPackage})
	if err != nil {
		return ErrMalformedEnvelope
	}
	encInfo, err := ioutil.ReadAll(infoStream)
	if err != nil {
		return ioErr(err)
	}
	encPkg, err := ioutil.ReadAll(pkgStream)
	if err != nil {
		return ioErr(err)
	}

	profile, err := offcrypto.DetectProfile(encInfo)
	if err != nil {
		return err
	}
	if Debug {
		log.Println("ooxmlcrypt: decrypting profile", profile)
	}

	var cleartext []byte
	switch profile {
	case ProfileAgile:
		cleartext, err = offcrypto.DecryptAgile(encInfo, encPkg, password)
	default:
		cleartext, err = offcrypto.DecryptStandard(encInfo, encPkg, password)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(cleartext); err != nil {
		return ioErr(err)
	}
	return nil
}
