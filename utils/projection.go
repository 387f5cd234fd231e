package utils

import "math"

// Belgian Lambert 72 (EPSG:31370). Incoming points are WGS84 lat/lng; stored
// geometry is Lambert 72 meters, so the write path projects and the read path
// unprojects. Implemented as the EPSG 9802 two-parallel Lambert conformal
// conic on the International 1924 ellipsoid, with the published 7-parameter
// shift between WGS84 and Belgian Datum 72.

const (
	intlA = 6378388.0
	intlF = 1.0 / 297.0

	wgsA = 6378137.0
	wgsF = 1.0 / 298.257223563

	lambertLat1 = 51.16666723
	lambertLat2 = 49.8333339
	lambertLon0 = 4.367486666666666
	lambertFE   = 150000.013
	lambertFN   = 5400088.438

	// BD72 -> WGS84 position-vector parameters (m, arcsec, ppm).
	shiftDX = -106.8686
	shiftDY = 52.2978
	shiftDZ = -103.7239
	shiftRX = 0.3366
	shiftRY = -0.457
	shiftRZ = 1.8422
	shiftS  = -1.2747

	arcsec = math.Pi / 180 / 3600
	deg    = math.Pi / 180
)

// Lambert72Forward projects a WGS84 coordinate to Lambert 72 easting/northing.
func Lambert72Forward(lat, lng float64) (x, y float64) {
	// WGS84 geodetic -> BD72 geodetic via ECEF.
	ex, ey, ez := geodeticToECEF(lat*deg, lng*deg, wgsA, wgsF)
	bx, by, bz := helmertInverse(ex, ey, ez)
	phi, lam := ecefToGeodetic(bx, by, bz, intlA, intlF)

	return lccForward(phi, lam)
}

// Lambert72Inverse unprojects Lambert 72 easting/northing back to WGS84.
func Lambert72Inverse(x, y float64) (lat, lng float64) {
	phi, lam := lccInverse(x, y)

	bx, by, bz := geodeticToECEF(phi, lam, intlA, intlF)
	ex, ey, ez := helmertForward(bx, by, bz)
	wphi, wlam := ecefToGeodetic(ex, ey, ez, wgsA, wgsF)

	return wphi / deg, wlam / deg
}

func eccentricity(f float64) float64 {
	return math.Sqrt(2*f - f*f)
}

func geodeticToECEF(phi, lam, a, f float64) (x, y, z float64) {
	e2 := 2*f - f*f
	sin := math.Sin(phi)
	n := a / math.Sqrt(1-e2*sin*sin)
	x = n * math.Cos(phi) * math.Cos(lam)
	y = n * math.Cos(phi) * math.Sin(lam)
	z = n * (1 - e2) * sin
	return
}

func ecefToGeodetic(x, y, z, a, f float64) (phi, lam float64) {
	e2 := 2*f - f*f
	lam = math.Atan2(y, x)
	p := math.Hypot(x, y)
	phi = math.Atan2(z, p*(1-e2))
	for i := 0; i < 8; i++ {
		sin := math.Sin(phi)
		n := a / math.Sqrt(1-e2*sin*sin)
		phi = math.Atan2(z+e2*n*sin, p)
	}
	return
}

// helmertForward applies the BD72 -> WGS84 position-vector transformation.
func helmertForward(x, y, z float64) (float64, float64, float64) {
	rx, ry, rz := shiftRX*arcsec, shiftRY*arcsec, shiftRZ*arcsec
	s := 1 + shiftS*1e-6
	return shiftDX + s*(x-rz*y+ry*z),
		shiftDY + s*(rz*x+y-rx*z),
		shiftDZ + s*(-ry*x+rx*y+z)
}

// helmertInverse applies WGS84 -> BD72 (small-angle inverse of the above).
func helmertInverse(x, y, z float64) (float64, float64, float64) {
	rx, ry, rz := shiftRX*arcsec, shiftRY*arcsec, shiftRZ*arcsec
	s := 1 + shiftS*1e-6
	tx, ty, tz := (x-shiftDX)/s, (y-shiftDY)/s, (z-shiftDZ)/s
	return tx + rz*ty - ry*tz,
		-rz*tx + ty + rx*tz,
		ry*tx - rx*ty + tz
}

func lccConstants() (e, n, f, rF float64) {
	e = eccentricity(intlF)
	phi1 := lambertLat1 * deg
	phi2 := lambertLat2 * deg

	m1 := lccM(phi1, e)
	m2 := lccM(phi2, e)
	t1 := lccT(phi1, e)
	t2 := lccT(phi2, e)

	n = (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	f = m1 / (n * math.Pow(t1, n))
	// Latitude of origin is the pole, so the radius at the false origin is 0.
	rF = 0
	return
}

func lccM(phi, e float64) float64 {
	sin := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*sin*sin)
}

func lccT(phi, e float64) float64 {
	sin := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-e*sin)/(1+e*sin), e/2)
}

func lccForward(phi, lam float64) (x, y float64) {
	e, n, f, rF := lccConstants()
	r := intlA * f * math.Pow(lccT(phi, e), n)
	theta := n * (lam - lambertLon0*deg)
	x = lambertFE + r*math.Sin(theta)
	y = lambertFN + rF - r*math.Cos(theta)
	return
}

func lccInverse(x, y float64) (phi, lam float64) {
	e, n, f, rF := lccConstants()
	dx := x - lambertFE
	dy := rF - (y - lambertFN)
	r := math.Hypot(dx, dy)
	if n < 0 {
		r = -r
	}
	t := math.Pow(r/(intlA*f), 1/n)
	theta := math.Atan2(dx, dy)

	lam = theta/n + lambertLon0*deg
	phi = math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 8; i++ {
		sin := math.Sin(phi)
		phi = math.Pi/2 - 2*math.Atan(t*math.Pow((1-e*sin)/(1+e*sin), e/2))
	}
	return
}
