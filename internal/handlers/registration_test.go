package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/walletd-io/walletd/internal/models"
)

const registrationPath = "/v1/devices/:deviceLibraryId/registrations/:passTypeId/:serialNumber"

func registrationURI(deviceLibraryID, passTypeID, serialNumber string) string {
	return fmt.Sprintf("/v1/devices/%s/registrations/%s/%s", deviceLibraryID, passTypeID, serialNumber)
}

func (suite *HandlerTestSuite) registerBody(pushToken string) *bytes.Buffer {
	body, err := json.Marshal(models.RegisterDevice{PushToken: pushToken})
	suite.Require().NoError(err)
	return bytes.NewBuffer(body)
}

func (suite *HandlerTestSuite) TestRegisterDevice() {
	pass := suite.createPass(testSerialNumber, time.Now())
	var registeredPass *models.Pass
	suite.api.OnRegistered = func(_ context.Context, p *models.Pass, _ *models.Device) {
		registeredPass = p
	}

	token := strings.Repeat("ab", 32)
	_, res, err := suite.ServeRequest(
		http.MethodPost, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber),
		suite.api.RegisterDevice, suite.registerBody(token),
		map[string]string{"Authorization": "ApplePass " + testAuthToken},
	)
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)
	suite.NotNil(registeredPass)
	suite.Equal(pass.ID, registeredPass.ID)

	var device models.Device
	suite.Require().NoError(suite.api.db.First(&device, "device_library_id = ?", testDeviceLibraryID).Error)
	suite.Equal(token, device.PushToken)

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestRegisterDeviceIsIdempotent() {
	suite.createPass(testSerialNumber, time.Now())
	events := 0
	suite.api.OnRegistered = func(_ context.Context, _ *models.Pass, _ *models.Device) {
		events++
	}

	headers := map[string]string{"Authorization": "ApplePass " + testAuthToken}
	uri := registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber)

	_, res, err := suite.ServeRequest(http.MethodPost, registrationPath, uri,
		suite.api.RegisterDevice, suite.registerBody(strings.Repeat("ab", 32)), headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)

	_, res, err = suite.ServeRequest(http.MethodPost, registrationPath, uri,
		suite.api.RegisterDevice, suite.registerBody(strings.Repeat("ab", 32)), headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code)
	suite.Equal(1, events, "already-registered must not re-emit the event")

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestRegisterDeviceRefreshesPushToken() {
	suite.createPass(testSerialNumber, time.Now())
	headers := map[string]string{"Authorization": "ApplePass " + testAuthToken}
	uri := registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber)

	_, res, err := suite.ServeRequest(http.MethodPost, registrationPath, uri,
		suite.api.RegisterDevice, suite.registerBody(strings.Repeat("ab", 32)), headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)

	rotated := strings.Repeat("cd", 32)
	_, res, err = suite.ServeRequest(http.MethodPost, registrationPath, uri,
		suite.api.RegisterDevice, suite.registerBody(rotated), headers)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code)

	var device models.Device
	suite.Require().NoError(suite.api.db.First(&device, "device_library_id = ?", testDeviceLibraryID).Error)
	suite.Equal(rotated, device.PushToken, "re-registering must persist the rotated token")

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestRegisterDeviceAuth() {
	suite.createPass(testSerialNumber, time.Now())
	uri := registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber)

	for name, header := range map[string]string{
		"wrong token":    "ApplePass wrongtoken",
		"wrong scheme":   "Bearer " + testAuthToken,
		"missing header": "",
	} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		_, res, err := suite.ServeRequest(http.MethodPost, registrationPath, uri,
			suite.api.RegisterDevice, suite.registerBody(strings.Repeat("ab", 32)), headers)
		suite.Require().NoError(err)
		suite.Equal(http.StatusUnauthorized, res.Code, name)
	}

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(0), count)
}

func (suite *HandlerTestSuite) TestRegisterDeviceUnknownPassIs404BeforeAuth() {
	// no pass exists, and no Authorization header is sent either
	_, res, err := suite.ServeRequest(http.MethodPost, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, "NO-SUCH-SERIAL"),
		suite.api.RegisterDevice, suite.registerBody(strings.Repeat("ab", 32)), nil)
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestRegisterDeviceBadPayload() {
	suite.createPass(testSerialNumber, time.Now())
	_, res, err := suite.ServeRequest(http.MethodPost, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber),
		suite.api.RegisterDevice, bytes.NewBufferString("{not json"),
		map[string]string{"Authorization": "ApplePass " + testAuthToken})
	suite.Require().NoError(err)
	suite.Equal(http.StatusBadRequest, res.Code)
}

func (suite *HandlerTestSuite) TestUnregisterDevice() {
	pass := suite.createPass(testSerialNumber, time.Now())
	suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))
	unregistered := false
	suite.api.OnUnregistered = func(_ context.Context, _ *models.Pass, _ *models.Device) {
		unregistered = true
	}

	_, res, err := suite.ServeRequest(http.MethodDelete, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber),
		suite.api.UnregisterDevice, nil,
		map[string]string{"Authorization": "ApplePass " + testAuthToken})
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, res.Code)
	suite.True(unregistered)

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(0), count)
	suite.api.db.Model(&models.Device{}).Count(&count)
	suite.Equal(int64(0), count, "the device row goes away with its last registration")
}

func (suite *HandlerTestSuite) TestUnregisterUnknownDevice() {
	suite.createPass(testSerialNumber, time.Now())
	_, res, err := suite.ServeRequest(http.MethodDelete, registrationPath,
		registrationURI("never-registered", testPassTypeID, testSerialNumber),
		suite.api.UnregisterDevice, nil,
		map[string]string{"Authorization": "ApplePass " + testAuthToken})
	suite.Require().NoError(err)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *HandlerTestSuite) TestUnregisterDeviceAuth() {
	pass := suite.createPass(testSerialNumber, time.Now())
	suite.createRegistration(pass, testDeviceLibraryID, strings.Repeat("ab", 32))

	_, res, err := suite.ServeRequest(http.MethodDelete, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber),
		suite.api.UnregisterDevice, nil,
		map[string]string{"Authorization": "ApplePass wrongtoken"})
	suite.Require().NoError(err)
	suite.Equal(http.StatusUnauthorized, res.Code)

	var count int64
	suite.api.db.Model(&models.Registration{}).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *HandlerTestSuite) TestWalletUnionPassScheme() {
	suite.createPass(testSerialNumber, time.Now())
	_, res, err := suite.ServeRequest(http.MethodPost, registrationPath,
		registrationURI(testDeviceLibraryID, testPassTypeID, testSerialNumber),
		suite.api.RegisterDevice, suite.registerBody(strings.Repeat("x", 150)),
		map[string]string{"Authorization": "WalletUnionPass " + testAuthToken})
	suite.Require().NoError(err)
	suite.Equal(http.StatusCreated, res.Code)
}
