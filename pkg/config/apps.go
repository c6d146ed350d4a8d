package config

import (
	"slices"
	"strings"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
)

const (
	apkMirror = "https://www.apkmirror.com/apk/"
	apkPure   = "https://apkpure.net/-/{package}"
	apkSOS    = "https://apksos.com/download-app/{package}"
)

func uptodown(name string) string { return "https://" + name + ".en.uptodown.com/android" }

// knownSources maps well-known apps to their default acquisition source.
// {package} is replaced by the app's package name.
var knownSources = map[string]string{
	"backdrops":            apkMirror + "backdrops/backdrops-wallpapers/",
	"bacon":                apkMirror + "onelouder-apps/baconreader-for-reddit/",
	"boost":                apkMirror + "ruben-mayayo/boost-for-reddit/",
	"candyvpn":             apkMirror + "liondev-io/candylink-vpn/",
	"duolingo":             apkMirror + "duolingo/duolingo-duolingo/",
	"grecorder":            apkMirror + "google-inc/google-recorder/",
	"icon_pack_studio":     apkMirror + "smart-launcher-team/icon-pack-studio/",
	"infinity":             apkMirror + "docile-alligator/infinity-for-reddit/",
	"inshorts":             apkMirror + "inshorts-formerly-news-in-shorts/inshorts-news-in-60-words-2/",
	"instagram":            apkMirror + "instagram/instagram-instagram/",
	"irplus":               apkMirror + "binarymode/irplus-infrared-remote/",
	"lightroom":            apkMirror + "adobe/lightroom/",
	"meme-generator-free":  apkMirror + "zombodroid/meme-generator-free/",
	"messenger":            apkMirror + "facebook-2/messenger/",
	"netguard":             apkMirror + "marcel-bokhorst/netguard-no-root-firewall/",
	"nova_launcher":        apkMirror + "teslacoil-software/nova-launcher/",
	"nyx-music-player":     apkMirror + "awedea/nyx-music-player/",
	"pixiv":                apkMirror + "pixiv-inc/pixiv/",
	"reddit":               apkMirror + "redditinc/reddit/",
	"relay":                apkMirror + "dbrady/relay-for-reddit-2/",
	"rif":                  apkMirror + "talklittle/reddit-is-fun/",
	"slide":                apkMirror + "haptic-apps/slide-for-reddit/",
	"solidexplorer":        apkMirror + "neatbytes/solid-explorer-beta/",
	"sonyheadphone":        apkMirror + "sony-corporation/sony-headphones-connect/",
	"sync":                 apkMirror + "red-apps-ltd/sync-for-reddit/",
	"tasker":               apkMirror + "joaomgcd/tasker-crafty-apps-eu/",
	"ticktick":             apkMirror + "appest-inc/ticktick-to-do-list-with-reminder-day-planner/",
	"tiktok":               apkMirror + "tiktok-pte-ltd/tik-tok-including-musical-ly/",
	"musically":            apkMirror + "tiktok-pte-ltd/tik-tok-including-musical-ly/",
	"trakt":                apkMirror + "trakt/trakt/",
	"twitch":               apkMirror + "twitch-interactive-inc/twitch/",
	"twitter":              apkMirror + "x-corp/twitter/",
	"vsco":                 apkMirror + "vsco/vsco-cam/",
	"warnwetter":           apkMirror + "deutscher-wetterdienst/warnwetter/",
	"windy":                apkMirror + "windy-weather-world-inc/windy-wind-weather-forecast/",
	"youtube":              apkMirror + "google-inc/youtube/",
	"youtube_music":        apkMirror + "google-inc/youtube-music/",
	"yuka":                 apkMirror + "yuka-apps/yuka-food-cosmetic-scan/",
	"strava":               apkMirror + "strava-inc/strava-running-and-cycling-gps/",
	"vanced":               apkMirror + "team-vanced/youtube-vanced/",
	"tumblr":               apkMirror + "tumblr-inc/tumblr/",
	"fitnesspal":           apkMirror + "myfitnesspal-inc/calorie-counter-myfitnesspal/",
	"facebook":             apkMirror + "facebook-2/facebook/",
	"lemmy-sync":           apkMirror + "sync-apps-ltd/sync-for-lemmy/",
	"photos":               apkMirror + "google-inc/photos/",
	"my-expenses":          uptodown("my-expenses"),
	"spotify":              uptodown("spotify"),
	"joey":                 uptodown("joey-for-reddit"),
	"scbeasy":              uptodown("scb-easy"),
	"expensemanager":       uptodown("bishinews-expense-manager"),
	"androidtwelvewidgets": apkPure,
	"reddit-news":          apkPure,
	"hex-editor":           apkPure,
	"photomath":            apkPure,
	"spotify-lite":         apkPure,
	"digitales":            apkPure,
	"finanz-online":        apkSOS,
}

// knownPackages maps well-known apps to their package names.
var knownPackages = map[string]string{
	"reddit":               "com.reddit.frontpage",
	"duolingo":             "com.duolingo",
	"tiktok":               "com.ss.android.ugc.trill",
	"musically":            "com.zhiliaoapp.musically",
	"twitter":              "com.twitter.android",
	"warnwetter":           "de.dwd.warnapp",
	"spotify":              "com.spotify.music",
	"nyx-music-player":     "com.awedea.nyx",
	"icon_pack_studio":     "ginlemon.iconpackstudio",
	"ticktick":             "com.ticktick.task",
	"twitch":               "tv.twitch.android.app",
	"hex-editor":           "com.myprog.hexedit",
	"windy":                "co.windyapp.android",
	"my-expenses":          "org.totschnig.myexpenses",
	"backdrops":            "com.backdrops.wallpapers",
	"expensemanager":       "com.ithebk.expensemanager",
	"tasker":               "net.dinglisch.android.taskerm",
	"irplus":               "net.binarymode.android.irplus",
	"vsco":                 "com.vsco.cam",
	"meme-generator-free":  "com.zombodroid.MemeGenerator",
	"nova_launcher":        "com.teslacoilsw.launcher",
	"netguard":             "eu.faircode.netguard",
	"instagram":            "com.instagram.android",
	"inshorts":             "com.nis.app",
	"solidexplorer":        "pl.solidexplorer2",
	"lightroom":            "com.adobe.lrmobile",
	"messenger":            "com.facebook.orca",
	"grecorder":            "com.google.android.apps.recorder",
	"trakt":                "tv.trakt.trakt",
	"candyvpn":             "com.candylink.openvpn",
	"sonyheadphone":        "com.sony.songpal.mdr",
	"androidtwelvewidgets": "com.dci.dev.androidtwelvewidgets",
	"yuka":                 "io.yuka.android",
	"relay":                "free.reddit.news",
	"boost":                "com.rubenmayayo.reddit",
	"rif":                  "com.andrewshu.android.reddit",
	"sync":                 "com.laurencedawson.reddit_sync",
	"infinity":             "ml.docilealligator.infinityforreddit",
	"slide":                "me.ccrama.redditslide",
	"bacon":                "com.onelouder.baconreader",
	"youtube":              "com.google.android.youtube",
	"youtube_music":        "com.google.android.apps.youtube.music",
	"microg":               "com.mgoogle.android.gms",
	"pixiv":                "jp.pxv.android",
	"strava":               "com.strava",
	"photomath":            "com.microblink.photomath",
	"joey":                 "o.o.joey",
	"vanced":               "com.vanced.android.youtube",
	"spotify-lite":         "com.spotify.lite",
	"digitales":            "at.gv.oe.app",
	"scbeasy":              "com.scb.phone",
	"reddit-news":          "reddit.news",
	"finanz-online":        "at.gv.bmf.bmf2go",
	"tumblr":               "com.tumblr",
	"fitnesspal":           "com.myfitnesspal.android",
	"facebook":             "com.facebook.katana",
	"lemmy-sync":           "io.syncapps.lemmy_sync",
	"xiaomi-wearable":      "com.xiaomi.wearable",
	"photos":               "com.google.android.apps.photos",
	"amazon":               "com.amazon.mShop.android.shopping",
	"bandcamp":             "com.bandcamp.android",
	"magazines":            "com.google.android.apps.magazines",
	"winrar":               "com.rarlab.rar",
	"soundcloud":           "com.soundcloud.android",
	"stocard":              "de.stocard.stocard",
	"willhaben":            "at.willhaben",
}

// KnownApps lists the apps with a built-in package name, sorted.
func KnownApps() []string {
	names := make([]string, 0, len(knownPackages))
	for name := range knownPackages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Apps materialises the configured apps in configuration order.
func (c *Config) Apps() ([]*apk.App, error) {
	apps := make([]*apk.App, 0, len(c.AppNames))
	for _, name := range c.AppNames {
		app, err := c.App(name)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// App materialises one app, applying global and built-in defaults.
func (c *Config) App(name string) (*apk.App, error) {
	if err := errors.ValidateAppName(name); err != nil {
		return nil, err
	}
	s := c.AppSettings[name]
	key := strings.ToLower(name)

	pkg := s.Package
	if pkg == "" {
		pkg = knownPackages[key]
	}
	if pkg == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"app %s is not known; set %s_PACKAGE_NAME", name, EnvPrefix(name))
	}

	src := s.Source
	if src == "" {
		src = strings.ReplaceAll(knownSources[key], "{package}", pkg)
	}
	if src == "" && s.DirectURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"app %s has no download source; set %s_DL_SOURCE or %s_DL", name, EnvPrefix(name), EnvPrefix(name))
	}

	app := &apk.App{
		Name:        name,
		PackageName: pkg,
		Version:     s.Version,
		Source:      src,
		DirectURL:   s.DirectURL,
		Archs:       firstNonEmpty(s.Archs, c.Global.Archs),
		CLI:         apk.BundleRef{Source: firstString(s.CLI, c.Global.CLI)},
		Include:     s.Include,
		Exclude:     s.Exclude,
		Keystore:    firstString(s.Keystore, c.Global.Keystore),
		OptionsFile: firstString(s.OptionsFile, c.Global.OptionsFile),
		OldKey:      c.Global.OldKey,
	}
	if s.OldKey != nil {
		app.OldKey = *s.OldKey
	}
	for _, p := range firstNonEmpty(s.Patches, c.Global.Patches) {
		app.Bundles = append(app.Bundles, apk.BundleRef{Source: p})
	}

	for _, u := range []string{app.DirectURL, app.CLI.Source} {
		if u == "" {
			continue
		}
		if err := errors.ValidateURL(u); err != nil {
			return nil, err
		}
	}
	for _, b := range app.Bundles {
		if err := errors.ValidateURL(b.Source); err != nil {
			return nil, err
		}
	}
	if app.Source != "" && !strings.HasPrefix(app.Source, "apkeep") {
		if err := errors.ValidateURL(app.Source); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return slices.Clone(l)
		}
	}
	return nil
}
