/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command opcua-serve runs one OPC UA Binary secure-channel/session
// server: it loads Settings from flags, a config file and the
// environment (spf13/viper), builds the CryptoProvider/PKI/SecurityPolicy
// collaborators, optionally hot-reloads trust-list directories
// (fsnotify), and runs until interrupted.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	libcry "github.com/nabbar/opcua-core/crypto"
	liblog "github.com/nabbar/opcua-core/logger"
	libpki "github.com/nabbar/opcua-core/pki"
	libsec "github.com/nabbar/opcua-core/secpolicy"
	libsrv "github.com/nabbar/opcua-core/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cliOptions struct {
	ConfigFile string

	CertFile string
	KeyFile  string

	TrustedCertsDir string
	TrustedCRLsDir  string
	IssuerCertsDir  string
	IssuerCRLsDir   string
}

func main() {
	opt := &cliOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "opcua-serve",
		Short:         "Run the OPC UA secure-channel/session server",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, opt)
		},
	}

	st := libsrv.DefaultSettings()
	flags := cmd.Flags()
	flags.StringVar(&opt.ConfigFile, "config", "", "Path to a YAML/JSON/TOML config file.")
	flags.String("listen-address", st.ListenAddress, "Address the server listens on.")
	flags.Duration("async-operation-timeout-ms", st.AsyncOperationTimeout, "Timeout before a parked async operation is cancelled.")
	flags.Duration("check-session-interval-ms", st.CheckSessionInterval, "How often expired sessions/GDS transactions are swept.")
	flags.Duration("default-session-timeout-ms", st.DefaultSessionTimeout, "Session timeout requested by a client with none specified.")
	flags.Duration("max-session-timeout-ms", st.MaxSessionTimeout, "Upper bound a client's requested session timeout is clamped to.")
	flags.Duration("default-channel-lifetime-ms", st.DefaultChannelLifetime, "SecureChannel lifetime requested by a client with none specified.")
	flags.Duration("max-channel-lifetime-ms", st.MaxChannelLifetime, "Upper bound a client's requested channel lifetime is clamped to.")
	flags.Duration("channel-inactivity-timeout-ms", st.ChannelInactivityTimeout, "How long a channel may go without traffic before it is closed.")
	flags.Uint32("max-chunk-size", st.MaxChunkSize, "Maximum chunk size accepted/emitted.")
	flags.Int("min-key-bits", st.MinKeyBits, "Minimum RSA modulus size a peer certificate must carry.")
	flags.String("primary-policy", string(st.PrimaryPolicy), "SecurityPolicy URI the server's handshake identity is presented under.")

	flags.StringVar(&opt.CertFile, "cert", "", "PEM application instance certificate for the primary policy.")
	flags.StringVar(&opt.KeyFile, "key", "", "PEM private key matching --cert.")
	flags.StringVar(&opt.TrustedCertsDir, "trusted-certs-dir", "", "Directory of trusted-peer DER/PEM certificates to hot-reload.")
	flags.StringVar(&opt.TrustedCRLsDir, "trusted-crls-dir", "", "Directory of trusted-group CRLs to hot-reload.")
	flags.StringVar(&opt.IssuerCertsDir, "issuer-certs-dir", "", "Directory of issuer certificates to hot-reload.")
	flags.StringVar(&opt.IssuerCRLsDir, "issuer-crls-dir", "", "Directory of issuer CRLs to hot-reload.")

	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	v.SetEnvPrefix("OPCUA")
	v.AutomaticEnv()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(v *viper.Viper, opt *cliOptions) error {
	if opt.ConfigFile != "" {
		v.SetConfigFile(opt.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	st := libsrv.DefaultSettings()
	st.ListenAddress = v.GetString("listen-address")
	st.AsyncOperationTimeout = v.GetDuration("async-operation-timeout-ms")
	st.CheckSessionInterval = v.GetDuration("check-session-interval-ms")
	st.DefaultSessionTimeout = v.GetDuration("default-session-timeout-ms")
	st.MaxSessionTimeout = v.GetDuration("max-session-timeout-ms")
	st.DefaultChannelLifetime = v.GetDuration("default-channel-lifetime-ms")
	st.MaxChannelLifetime = v.GetDuration("max-channel-lifetime-ms")
	st.ChannelInactivityTimeout = v.GetDuration("channel-inactivity-timeout-ms")
	st.MaxChunkSize = uint32(v.GetUint("max-chunk-size"))
	st.MinKeyBits = v.GetInt("min-key-bits")
	st.PrimaryPolicy = libsec.URI(v.GetString("primary-policy"))

	log := liblog.New(context.Background())
	logFn := func() liblog.Logger { return log }

	prov := libcry.New()
	store := libpki.New(prov, libpki.Limits{
		MaxTrustListSize:    st.MaxTrustListSize,
		MaxRejectedListSize: st.MaxRejectedListSize,
	})
	registry := libsec.NewRegistry(prov)

	if opt.CertFile != "" && opt.KeyFile != "" {
		cert, key, err := loadCertAndKey(opt.CertFile, opt.KeyFile)
		if err != nil {
			return err
		}
		policy, perr := registry.Get(st.PrimaryPolicy)
		if perr != nil {
			return fmt.Errorf("resolving primary policy: %w", perr)
		}
		libcert, cerr := prov.ParseCertificate(cert)
		if cerr != nil {
			return fmt.Errorf("parsing --cert: %w", cerr)
		}
		if uerr := policy.UpdateCertificateAndKey(libcert, key); uerr != nil {
			return fmt.Errorf("loading application identity: %w", uerr)
		}
	}

	var watcher *libpki.DirectoryWatcher
	if opt.TrustedCertsDir != "" || opt.TrustedCRLsDir != "" || opt.IssuerCertsDir != "" || opt.IssuerCRLsDir != "" {
		w, werr := libpki.NewDirectoryWatcher(store, logFn, []libpki.GroupDirs{{
			Group:        libpki.GroupApplication,
			TrustedCerts: opt.TrustedCertsDir,
			TrustedCRLs:  opt.TrustedCRLsDir,
			IssuerCerts:  opt.IssuerCertsDir,
			IssuerCRLs:   opt.IssuerCRLsDir,
		}})
		if werr != nil {
			return fmt.Errorf("watching trust list directories: %w", werr)
		}
		watcher = w
		go watcher.Run()
		defer watcher.Close()
	}

	metrics := libsrv.NewPrometheusMetrics(prometheus.NewRegistry(), "opcua")

	srv := libsrv.New(libsrv.Config{
		Settings: st,
		Crypto:   prov,
		PKI:      store,
		Policies: registry,
		PKIGroup: libpki.GroupApplication,
		Log:      logFn,
		Metrics:  metrics,
	})

	if err := srv.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	log.Info("opcua-serve started", nil, st.ListenAddress)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("opcua-serve shutting down", nil)
	srv.Stop()
	return nil
}

func loadCertAndKey(certPath, keyPath string) ([]byte, *rsa.PrivateKey, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading --cert: %w", err)
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, nil, fmt.Errorf("--cert is not valid PEM")
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading --key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("--key is not valid PEM")
	}

	key, err := parseRSAKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing --key: %w", err)
	}
	return certBlock.Bytes, key, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not RSA")
	}
	return rsaKey, nil
}
