package config

type TokenConf struct {
	AccessTokenExpiryHour  int
	RefreshTokenExpiryHour int
	AccessTokenSecret      string
	RefreshTokenSecret     string
}

func NewTokenConf() *TokenConf {
	auth := GetConfig().Auth
	return &TokenConf{
		AccessTokenExpiryHour:  auth.AccessTokenExpiryHour,
		RefreshTokenExpiryHour: auth.RefreshTokenExpiryHour,
		AccessTokenSecret:      auth.AccessTokenSecret,
		RefreshTokenSecret:     auth.RefreshTokenSecret,
	}
}
