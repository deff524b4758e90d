package otp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParseURI decodes an otpauth:// URI into a validated OTP value.
//
// Absent optional parameters take the documented defaults; a parameter that
// is present but malformed fails the whole parse, there is no silent
// fallback. The label yields "issuer:accountname" or a bare accountname; an
// issuer query parameter must agree with the label-derived issuer. counter
// is read only for hotp, period only for totp.
func ParseURI(rawURI string) (OTP, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return OTP{}, fmt.Errorf("otp: invalid uri: %w", err)
	}
	if u.Scheme != "otpauth" {
		return OTP{}, fmt.Errorf("otp: invalid uri scheme %q", u.Scheme)
	}

	var typ Type
	switch u.Host {
	case string(TypeHOTP):
		typ = TypeHOTP
	case string(TypeTOTP):
		typ = TypeTOTP
	default:
		return OTP{}, fmt.Errorf("otp: invalid uri type %q", u.Host)
	}

	issuer, accountName := parseLabel(u.Path)

	query := u.Query()

	secret := query.Get("secret")
	if secret == "" {
		return OTP{}, fmt.Errorf("otp: uri is missing the secret parameter")
	}

	algorithm := DefaultAlgorithm
	if raw := query.Get("algorithm"); raw != "" {
		algorithm, err = parseAlgorithm(raw)
		if err != nil {
			return OTP{}, err
		}
	}

	digits := DefaultDigits
	if raw := query.Get("digits"); raw != "" {
		digits, err = strconv.Atoi(raw)
		if err != nil {
			return OTP{}, fmt.Errorf("otp: invalid digits parameter %q", raw)
		}
	}

	if queryIssuer := query.Get("issuer"); queryIssuer != "" {
		if issuer != "" && queryIssuer != issuer {
			return OTP{}, fmt.Errorf("otp: issuer parameter %q does not match label issuer %q", queryIssuer, issuer)
		}
		issuer = queryIssuer
	}

	switch typ {
	case TypeHOTP:
		counter := uint64(DefaultCounter)
		if raw := query.Get("counter"); raw != "" {
			counter, err = strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return OTP{}, fmt.Errorf("otp: invalid counter parameter %q", raw)
			}
		}
		return NewHOTP(algorithm, secret, digits, counter, issuer, accountName)
	default:
		period := DefaultPeriod
		if raw := query.Get("period"); raw != "" {
			period, err = strconv.Atoi(raw)
			if err != nil {
				return OTP{}, fmt.Errorf("otp: invalid period parameter %q", raw)
			}
		}
		return NewTOTP(algorithm, secret, digits, period, issuer, accountName)
	}
}

// URI encodes the value as an otpauth:// URI. Parameters equal to their
// default are omitted to produce minimal, interoperable URIs; secret is
// always included.
func (o OTP) URI() string {
	query := url.Values{}
	query.Set("secret", o.Secret)
	if o.Algorithm != DefaultAlgorithm {
		query.Set("algorithm", string(o.Algorithm))
	}
	if o.Digits != DefaultDigits {
		query.Set("digits", strconv.Itoa(o.Digits))
	}
	if o.Issuer != "" {
		query.Set("issuer", o.Issuer)
	}
	switch o.Type {
	case TypeHOTP:
		if o.Counter != DefaultCounter {
			query.Set("counter", strconv.FormatUint(o.Counter, 10))
		}
	case TypeTOTP:
		if o.Period != DefaultPeriod {
			query.Set("period", strconv.Itoa(o.Period))
		}
	}

	label := o.AccountName
	if o.Issuer != "" {
		label = o.Issuer + ":" + label
	}

	// url.URL escapes the path on serialization
	u := url.URL{
		Scheme:   "otpauth",
		Host:     string(o.Type),
		Path:     "/" + label,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// parseLabel splits the URI path into issuer and account name.
func parseLabel(path string) (issuer, accountName string) {
	// url.Parse already decoded the path
	label := strings.TrimPrefix(path, "/")
	if before, after, found := strings.Cut(label, ":"); found {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	return "", strings.TrimSpace(label)
}

func parseAlgorithm(raw string) (Algorithm, error) {
	switch strings.ToUpper(raw) {
	case string(AlgorithmSHA1):
		return AlgorithmSHA1, nil
	case string(AlgorithmSHA256):
		return AlgorithmSHA256, nil
	case string(AlgorithmSHA512):
		return AlgorithmSHA512, nil
	}
	return "", fmt.Errorf("otp: invalid algorithm parameter %q", raw)
}
